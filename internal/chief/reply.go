package chief

import (
	"fmt"
	"strings"
)

// ReplyError is one coded error line inside a reply file.
type ReplyError struct {
	Code string
	Text string
}

// RejectedTransaction is a rejected licence transaction and its errors.
type RejectedTransaction struct {
	TransactionRef string
	Errors         []ReplyError
}

// Reply is the parsed form of a licenceReply file: per-transaction accept
// and reject outcomes plus file-level errors.
type Reply struct {
	SourceSystem string
	RunNumber    string
	Accepted     []string
	Rejected     []RejectedTransaction
	FileErrors   []ReplyError
}

// HasRejections reports whether anything in the batch was refused.
func (r *Reply) HasRejections() bool {
	return len(r.Rejected) > 0 || len(r.FileErrors) > 0
}

// RewriteHeaderRunNumber replaces the run number in the header line of a
// raw CHIEF file without touching the rest of the text. Forwarded files
// travel under the recipient's numbering; reply layouts are too varied to
// round-trip through the grammar, so the rewrite is textual.
func RewriteHeaderRunNumber(data string, runNumber int) (string, error) {
	idx := strings.Index(data, "\n")
	if idx < 0 {
		return "", fmt.Errorf("file has no header line")
	}
	parts := strings.Split(data[:idx], fieldSeparator)
	pos := 2 + HeaderRunNumber
	if len(parts) <= pos || parts[1] != TypeFileHeader {
		return "", fmt.Errorf("malformed header line %q", data[:idx])
	}
	parts[pos] = itoa(runNumber)
	return strings.Join(parts, fieldSeparator) + data[idx:], nil
}

// ParseReply reads a licenceReply file. Reply layouts drifted over time so
// parsing is tolerant: unknown record types are skipped, end records are
// used only to close the open rejection block.
func ParseReply(data string) (*Reply, error) {
	records, err := tokenize(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0].Type != TypeFileHeader {
		return nil, fmt.Errorf("reply file has no header")
	}
	header := records[0]
	if !strings.Contains(header.Field(HeaderDataID), "Reply") {
		return nil, fmt.Errorf("data id %q is not a reply", header.Field(HeaderDataID))
	}

	reply := &Reply{
		SourceSystem: header.Field(HeaderSourceSystem),
		RunNumber:    header.Field(HeaderRunNumber),
	}
	var open *RejectedTransaction
	closeOpen := func() {
		if open != nil {
			reply.Rejected = append(reply.Rejected, *open)
			open = nil
		}
	}
	for _, record := range records[1:] {
		switch record.Type {
		case TypeAccepted:
			closeOpen()
			reply.Accepted = append(reply.Accepted, record.Field(0))
		case TypeRejected:
			closeOpen()
			open = &RejectedTransaction{TransactionRef: record.Field(0)}
		case TypeError:
			err := ReplyError{Code: record.Field(0), Text: record.Field(1)}
			if open != nil {
				open.Errors = append(open.Errors, err)
			} else {
				reply.FileErrors = append(reply.FileErrors, err)
			}
		case TypeFileError:
			reply.FileErrors = append(reply.FileErrors, ReplyError{Code: record.Field(0), Text: record.Field(1)})
		case TypeEnd, TypeFileTrailer:
			closeOpen()
		}
	}
	closeOpen()
	return reply, nil
}
