package db

import (
	"errors"
	"strings"
)

var errDBUnavailable = errors.New("db unavailable")

// joinRefs packs a list into a single text column. References and payload
// ids never contain newlines.
func joinRefs(refs []string) string {
	return strings.Join(refs, "\n")
}

func splitRefs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "\n")
}
