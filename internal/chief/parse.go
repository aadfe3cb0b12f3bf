package chief

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes CHIEF text into its tree form, selecting the grammar by the
// file header's data id. The tree keeps every field verbatim, so
// Encode(Parse(x)) reproduces x for any accepted file.
func Parse(data string) (*File, error) {
	records, err := tokenize(data)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%d records: file header and trailer are required", len(records))
	}
	header := records[0]
	if header.Type != TypeFileHeader {
		return nil, fmt.Errorf("line 1: expected %s, got %q", TypeFileHeader, header.Type)
	}
	grammar, ok := GrammarFor(header.Field(HeaderDataID))
	if !ok {
		return nil, fmt.Errorf("unknown data id %q", header.Field(HeaderDataID))
	}
	return parseWith(grammar, records)
}

// tokenize splits CHIEF text into records, checking the 1-based contiguous
// line numbering. The final newline is required.
func tokenize(data string) ([]Record, error) {
	if data == "" {
		return nil, fmt.Errorf("empty file")
	}
	if !strings.HasSuffix(data, "\n") {
		return nil, fmt.Errorf("missing trailing newline")
	}
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		parts := strings.Split(line, fieldSeparator)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: not a CHIEF record: %q", i+1, line)
		}
		lineNumber, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad line number %q", i+1, parts[0])
		}
		if lineNumber != i+1 {
			return nil, fmt.Errorf("line %d: numbered %d", i+1, lineNumber)
		}
		records = append(records, Record{
			LineNumber: lineNumber,
			Type:       parts[1],
			Fields:     parts[2:],
		})
	}
	return records, nil
}

func parseWith(grammar Grammar, records []Record) (*File, error) {
	file := &File{Grammar: grammar, Header: records[0]}
	if err := checkFields(grammar, records[0]); err != nil {
		return nil, err
	}

	trailer := records[len(records)-1]
	if trailer.Type != TypeFileTrailer {
		return nil, fmt.Errorf("line %d: expected %s, got %q", trailer.LineNumber, TypeFileTrailer, trailer.Type)
	}
	if err := checkFields(grammar, trailer); err != nil {
		return nil, err
	}
	file.Trailer = trailer

	var stack []*Node
	for _, record := range records[1 : len(records)-1] {
		switch {
		case record.Type == TypeEnd:
			if len(stack) == 0 {
				return nil, fmt.Errorf("line %d: end record outside any container", record.LineNumber)
			}
			open := stack[len(stack)-1]
			if record.Field(0) != open.Record.Type {
				return nil, fmt.Errorf("line %d: end of %q closes open %q", record.LineNumber, record.Field(0), open.Record.Type)
			}
			distance, err := strconv.Atoi(record.Field(1))
			if err != nil {
				return nil, fmt.Errorf("line %d: bad end distance %q", record.LineNumber, record.Field(1))
			}
			if want := record.LineNumber - open.Record.LineNumber + 1; distance != want {
				return nil, fmt.Errorf("line %d: end distance %d, expected %d", record.LineNumber, distance, want)
			}
			open.End = record
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				file.Transactions = append(file.Transactions, open)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, open)
			}

		default:
			spec, ok := grammar.Records[record.Type]
			if !ok {
				return nil, fmt.Errorf("line %d: record type %q not in %s grammar", record.LineNumber, record.Type, grammar.DataID)
			}
			if err := checkFields(grammar, record); err != nil {
				return nil, err
			}
			node := &Node{Record: record}
			if len(stack) == 0 {
				if record.Type != grammar.TopLevel {
					return nil, fmt.Errorf("line %d: %q at top level, expected %q", record.LineNumber, record.Type, grammar.TopLevel)
				}
				stack = append(stack, node)
				continue
			}
			parent := stack[len(stack)-1]
			if !childAllowed(grammar, parent.Record.Type, record.Type) {
				return nil, fmt.Errorf("line %d: %q not admitted inside %q", record.LineNumber, record.Type, parent.Record.Type)
			}
			if spec.Container {
				stack = append(stack, node)
			} else {
				parent.Children = append(parent.Children, node)
			}
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed %q opened at line %d", stack[len(stack)-1].Record.Type, stack[len(stack)-1].Record.LineNumber)
	}
	if len(file.Transactions) == 0 {
		return nil, fmt.Errorf("no transactions between header and trailer")
	}

	count, err := strconv.Atoi(trailer.Field(0))
	if err != nil {
		return nil, fmt.Errorf("bad trailer count %q", trailer.Field(0))
	}
	if count != len(file.Transactions) {
		return nil, fmt.Errorf("trailer counts %d transactions, file has %d", count, len(file.Transactions))
	}
	return file, nil
}

// checkFields enforces the token table for one record: required tokens must
// be present, and fields beyond the table are admitted only when empty.
func checkFields(grammar Grammar, record Record) error {
	spec := grammar.Records[record.Type]
	if min := grammar.minFields(record.Type); len(record.Fields) < min {
		return fmt.Errorf("line %d: %s has %d fields, needs %d", record.LineNumber, record.Type, len(record.Fields), min)
	}
	for i := len(spec.Fields); i < len(record.Fields); i++ {
		if record.Fields[i] != "" {
			return fmt.Errorf("line %d: %s has unexpected field %q at position %d", record.LineNumber, record.Type, record.Fields[i], i)
		}
	}
	return nil
}

func childAllowed(grammar Grammar, parentType, childType string) bool {
	for _, t := range grammar.Records[parentType].Children {
		if t == childType {
			return true
		}
	}
	return false
}

// Validate parses assembled text and confirms it carries the expected data
// id. Assembly errors surface before anything is transmitted.
func Validate(data, dataID string) error {
	file, err := Parse(data)
	if err != nil {
		return err
	}
	if file.DataID() != dataID {
		return fmt.Errorf("data id %q, expected %q", file.DataID(), dataID)
	}
	return nil
}
