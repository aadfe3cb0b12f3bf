package translator

import "strings"

// CHIEF trader address constraints.
const (
	maxAddressLineLen = 35
	maxAddressLines   = 5
)

// wrapAddress fills address lines greedily by whitespace, never breaking a
// word, capped at five lines of 35 characters. Overflow is discarded; a word
// longer than a whole line is truncated rather than split across lines.
func wrapAddress(lines []string) []string {
	words := strings.Fields(strings.Join(lines, " "))
	var out []string
	current := ""
	for _, word := range words {
		if len(word) > maxAddressLineLen {
			word = word[:maxAddressLineLen]
		}
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxAddressLineLen:
			current += " " + word
		default:
			out = append(out, current)
			if len(out) == maxAddressLines {
				return out
			}
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	if len(out) > maxAddressLines {
		out = out[:maxAddressLines]
	}
	return out
}

// sanitizeForeign strips characters HMRC rejects in foreign trader
// addresses and collapses newlines into spaces.
func sanitizeForeign(text string) string {
	text = strings.ReplaceAll(text, "#", "")
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return text
}

// padTo extends fields with empty strings up to n entries.
func padTo(fields []string, n int) []string {
	for len(fields) < n {
		fields = append(fields, "")
	}
	return fields
}
