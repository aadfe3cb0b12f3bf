package chief

import "strings"

// Record is one line of a CHIEF file: a type tag and its positional fields.
// LineNumber is as parsed; the encoder reassigns numbers on output.
type Record struct {
	LineNumber int
	Type       string
	Fields     []string
}

// R builds a record from a type tag and fields. Empty strings stand for
// absent values.
func R(recordType string, fields ...string) Record {
	return Record{Type: recordType, Fields: fields}
}

// End builds the closer for a container record. The encoder fills in the
// distance field.
func End(recordType string) Record {
	return Record{Type: TypeEnd, Fields: []string{recordType, ""}}
}

// Field returns the field at index i or the empty string when absent.
// Positional tokens are addressed through the grammar position constants.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Node is a container record with its children and closing end record.
// Leaf records have no children and a zero End.
type Node struct {
	Record   Record
	Children []*Node
	End      Record
}

// File is the parsed tree of a CHIEF file.
type File struct {
	Grammar Grammar
	Header  Record
	// Transactions are the top-level container nodes: licence blocks in a
	// licenceData file, licenceUsage blocks in a usageData file.
	Transactions []*Node
	Trailer      Record
}

// SourceSystem, RunNumber and friends read header tokens.
func (f *File) SourceSystem() string { return f.Header.Field(HeaderSourceSystem) }
func (f *File) DataID() string       { return f.Header.Field(HeaderDataID) }
func (f *File) RunNumber() string    { return f.Header.Field(HeaderRunNumber) }

// LicenceRef reads the licence reference of a top-level transaction.
func (n *Node) LicenceRef() string { return n.Record.Field(UsageLicenceRef) }

// TransactionRef reads the CHIEF transaction reference of a transaction.
func (n *Node) TransactionRef() string { return n.Record.Field(UsageTransactionRef) }

// Flatten returns the file as an ordered record stream, containers opened
// and closed in depth-first order. Distances and line numbers are left to
// the encoder.
func (f *File) Flatten() []Record {
	out := []Record{f.Header}
	for _, tx := range f.Transactions {
		out = append(out, tx.flatten()...)
	}
	return append(out, f.Trailer)
}

func (n *Node) flatten() []Record {
	out := []Record{n.Record}
	for _, child := range n.Children {
		out = append(out, child.flatten()...)
	}
	if n.End.Type != "" {
		out = append(out, n.End)
	}
	return out
}

// Render re-encodes the file. For a well-formed file this reproduces the
// input text exactly; after structural edits it renumbers lines and
// recomputes end distances and the trailer transaction count.
func (f *File) Render() (string, error) {
	trailer := f.Trailer
	trailer.Fields = append([]string(nil), trailer.Fields...)
	if len(trailer.Fields) > 0 {
		trailer.Fields[0] = itoa(len(f.Transactions))
	}
	records := []Record{f.Header}
	for _, tx := range f.Transactions {
		records = append(records, tx.flatten()...)
	}
	records = append(records, trailer)
	return Encode(records)
}

func joinFields(fields []string) string {
	return strings.Join(fields, fieldSeparator)
}

const fieldSeparator = `\`
