package chief

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// OverrideRunNumber rewrites the header run number in place. HMRC-forwarded
// copies of SPIRE files are re-stamped with the gateway's own run number.
func OverrideRunNumber(f *File, runNumber int) {
	fields := append([]string(nil), f.Header.Fields...)
	for len(fields) <= HeaderRunNumber {
		fields = append(fields, "")
	}
	fields[HeaderRunNumber] = strconv.Itoa(runNumber)
	f.Header.Fields = fields
}

// Partition splits a file's transactions by a licence-reference predicate.
// The returned files share the header and trailer shape of the input; their
// trailer counts are corrected on Render.
func Partition(f *File, wanted func(licenceRef string) bool) (kept, dropped *File) {
	kept = &File{Grammar: f.Grammar, Header: f.Header, Trailer: f.Trailer}
	dropped = &File{Grammar: f.Grammar, Header: f.Header, Trailer: f.Trailer}
	for _, tx := range f.Transactions {
		if wanted(tx.LicenceRef()) {
			kept.Transactions = append(kept.Transactions, tx)
		} else {
			dropped.Transactions = append(dropped.Transactions, tx)
		}
	}
	return kept, dropped
}

// licence statuses as they appear in usage transactions.
var statusNames = map[string]string{
	"O": "open",
	"C": "closed",
	"E": "exhausted",
	"S": "surrendered",
	"D": "expired",
}

// LiteUsagePayload is the JSON projection of a usage file's LITE subset.
type LiteUsagePayload struct {
	UsageDataID string         `json:"usage_data_id,omitempty"`
	Licences    []LicenceUsage `json:"licences"`
}

type LicenceUsage struct {
	ID             *string     `json:"id"`
	Action         string      `json:"action"`
	CompletionDate string      `json:"completion_date"`
	Goods          []GoodUsage `json:"goods"`
}

type GoodUsage struct {
	ID       *string `json:"id"`
	Usage    string  `json:"usage"`
	Value    string  `json:"value"`
	Currency string  `json:"currency"`
}

// Resolver maps CHIEF identifiers onto LITE UUIDs. Unknown identifiers
// project as null rather than failing the file.
type Resolver interface {
	LicenceID(reference string) (string, bool)
	GoodID(reference string, lineNumber int) (string, bool)
}

// ProjectJSON flattens a usage tree into the payload LITE consumes. File
// header and trailer, block trailers and per-declaration usage lines are
// discarded; only transactions whose licence status maps to "open" are kept.
func ProjectJSON(f *File, resolve Resolver) *LiteUsagePayload {
	payload := &LiteUsagePayload{Licences: []LicenceUsage{}}
	for _, tx := range f.Transactions {
		status := statusNames[tx.Record.Field(UsageLicenceStatus)]
		if status != "open" {
			continue
		}
		licence := LicenceUsage{
			ID:             nullableID(resolve.LicenceID(tx.LicenceRef())),
			Action:         status,
			CompletionDate: tx.Record.Field(UsageCompletionDate),
			Goods:          []GoodUsage{},
		}
		for _, line := range tx.Children {
			if line.Record.Type != TypeLine {
				continue
			}
			lineNumber, err := strconv.Atoi(line.Record.Field(LineNum))
			if err != nil {
				continue
			}
			licence.Goods = append(licence.Goods, GoodUsage{
				ID:       nullableID(resolve.GoodID(tx.LicenceRef(), lineNumber)),
				Usage:    normalizeAmount(line.Record.Field(LineQuantityUsed)),
				Value:    normalizeAmount(line.Record.Field(LineValueUsed)),
				Currency: line.Record.Field(LineCurrency),
			})
		}
		payload.Licences = append(payload.Licences, licence)
	}
	return payload
}

func nullableID(id string, ok bool) *string {
	if !ok {
		return nil
	}
	return &id
}

// normalizeAmount parses a CHIEF amount through decimal so "0017.50" and
// "17.5" project identically; unparseable amounts pass through verbatim.
func normalizeAmount(raw string) string {
	if raw == "" {
		return raw
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return d.String()
}
