package chief

import (
	"fmt"
	"strconv"
	"strings"
)

func itoa(n int) string { return strconv.Itoa(n) }

// Encode renders an ordered record stream as CHIEF text. Line numbers are
// assigned 1-based in stream order. For every end record the distance field
// is computed from the line number of the most recent unclosed opener of the
// same type, inclusive of both lines. Every line is terminated by a newline,
// so the file carries a trailing newline.
func Encode(records []Record) (string, error) {
	var b strings.Builder

	// A type is a container for this stream iff an end record closes it;
	// line records are containers in usage files but flat in licence files.
	closed := map[string]bool{}
	for _, record := range records {
		if record.Type == TypeEnd && len(record.Fields) > 0 {
			closed[record.Fields[0]] = true
		}
	}

	// Opener line numbers by container type, innermost last.
	openers := map[string][]int{}

	for i, record := range records {
		lineNumber := i + 1
		fields := record.Fields

		switch {
		case record.Type == TypeEnd:
			if len(fields) == 0 {
				return "", fmt.Errorf("line %d: end record without a type tag", lineNumber)
			}
			tag := fields[0]
			stack := openers[tag]
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: end record for unopened %q", lineNumber, tag)
			}
			opener := stack[len(stack)-1]
			openers[tag] = stack[:len(stack)-1]
			fields = []string{tag, itoa(lineNumber - opener + 1)}
		case closed[record.Type]:
			openers[record.Type] = append(openers[record.Type], lineNumber)
		}

		b.WriteString(itoa(lineNumber))
		b.WriteString(fieldSeparator)
		b.WriteString(record.Type)
		if len(fields) > 0 {
			b.WriteString(fieldSeparator)
			b.WriteString(joinFields(fields))
		}
		b.WriteString("\n")
	}

	for tag, stack := range openers {
		if len(stack) > 0 {
			return "", fmt.Errorf("unclosed %q opened at line %d", tag, stack[len(stack)-1])
		}
	}
	return b.String(), nil
}
