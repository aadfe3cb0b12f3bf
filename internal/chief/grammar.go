// Package chief implements the line-oriented CHIEF interchange format:
// backslash-separated fields, 1-based line numbers, container records closed
// by end records carrying the inclusive distance back to their opener, and a
// file trailer counting top-level transactions.
package chief

// Record type tags.
const (
	TypeFileHeader    = "fileHeader"
	TypeFileTrailer   = "fileTrailer"
	TypeLicence       = "licence"
	TypeLicenceUsage  = "licenceUsage"
	TypeLine          = "line"
	TypeUsage         = "usage"
	TypeTrader        = "trader"
	TypeForeignTrader = "foreignTrader"
	TypeCountry       = "country"
	TypeRestrictions  = "restrictions"
	TypeEnd           = "end"
	TypeAccepted      = "accepted"
	TypeRejected      = "rejected"
	TypeError         = "error"
	TypeFileError     = "fileError"
)

// File-header field positions, shared by every data id.
const (
	HeaderSourceSystem = iota
	HeaderDestinationSystem
	HeaderDataID
	HeaderCreationDateTime
	HeaderRunNumber
	HeaderResetRunNumber
)

// licenceUsage transaction field positions.
const (
	UsageTransactionRef = iota
	UsageAction
	UsageLicenceRef
	UsageLicenceStatus
	UsageCompletionDate
)

// Usage-file line field positions.
const (
	LineNum = iota
	LineQuantityUsed
	LineValueUsed
	LineCurrency
)

// FieldSpec names one positional token of a record type.
type FieldSpec struct {
	Name     string
	Optional bool
}

// RecordSpec describes one record type of a grammar: its tokens, whether it
// opens a container, and which record types may appear inside it.
type RecordSpec struct {
	Container bool
	Children  []string
	Fields    []FieldSpec
}

// Grammar is the set of record types admitted by one CHIEF data id, keyed by
// record type tag. Trailing empty fields are admitted everywhere; optional
// tokens may be absent entirely.
type Grammar struct {
	DataID   string
	TopLevel string
	Records  map[string]RecordSpec
}

func fields(specs ...FieldSpec) []FieldSpec { return specs }

func req(name string) FieldSpec { return FieldSpec{Name: name} }
func opt(name string) FieldSpec { return FieldSpec{Name: name, Optional: true} }

// UsageGrammar recognises usageData files:
//
//	file -> file_header licence_usage_transaction+ file_trailer
//	licence_usage_transaction -> licenceUsage line_block* end
//	line_block -> line usage* end
var UsageGrammar = Grammar{
	DataID:   "usageData",
	TopLevel: TypeLicenceUsage,
	Records: map[string]RecordSpec{
		TypeFileHeader: {Fields: fields(
			req("SOURCE_SYSTEM"), req("DESTINATION_SYSTEM"), req("DATA_ID"),
			req("CREATION_DATE_TIME"), req("RUN_NUMBER"), opt("RESET_RUN_NUMBER"),
		)},
		TypeLicenceUsage: {Container: true, Children: []string{TypeLine}, Fields: fields(
			req("TRANSACTION_REF"), req("ACTION"), req("LICENCE_REF"),
			req("LICENCE_STATUS"), opt("COMPLETION_DATE"),
		)},
		TypeLine: {Container: true, Children: []string{TypeUsage}, Fields: fields(
			req("LINE_NUM"), req("QUANTITY_USED"), req("VALUE_USED"), opt("CURRENCY"),
		)},
		TypeUsage: {Fields: fields(
			req("USAGE_TYPE"), req("DECLARATION_UCR"), req("DECLARATION_PART_NUM"),
			req("CONTROL_DATE"), req("QUANTITY_USED"), req("VALUE_USED"),
			opt("TRADER_ID"), opt("CLAIM_REF"), opt("ORIGIN_COUNTRY"),
			opt("CUSTOMS_MIC"), opt("CUSTOMS_MESSAGE"), opt("CONSIGNEE_NAME"),
		)},
		TypeFileTrailer: {Fields: fields(
			req("TRANSACTION_COUNT"), opt("HMRC_USAGE_COUNT"),
		)},
	},
}

// LicenceGrammar recognises licenceData files as assembled for HMRC.
var LicenceGrammar = Grammar{
	DataID:   "licenceData",
	TopLevel: TypeLicence,
	Records: map[string]RecordSpec{
		TypeFileHeader: {Fields: fields(
			req("SOURCE_SYSTEM"), req("DESTINATION_SYSTEM"), req("DATA_ID"),
			req("CREATION_DATE_TIME"), req("RUN_NUMBER"), opt("RESET_RUN_NUMBER"),
		)},
		TypeLicence: {
			Container: true,
			Children:  []string{TypeTrader, TypeCountry, TypeForeignTrader, TypeRestrictions, TypeLine},
			Fields: fields(
				req("TRANSACTION_REF"), req("ACTION"), req("LICENCE_REF"),
				req("LICENCE_TYPE"), req("USAGE"), opt("START_DATE"), opt("END_DATE"),
			),
		},
		TypeTrader: {Fields: fields(
			opt("TURN"), req("RPA_TRADER_ID"), opt("START_DATE"), opt("END_DATE"),
			req("NAME"), opt("ADDRESS_1"), opt("ADDRESS_2"), opt("ADDRESS_3"),
			opt("ADDRESS_4"), opt("ADDRESS_5"), opt("POSTCODE"),
		)},
		TypeCountry: {Fields: fields(
			opt("COUNTRY_ID"), opt("COUNTRY_GROUP"), req("USE"),
		)},
		TypeForeignTrader: {Fields: fields(
			req("NAME"), opt("ADDRESS_1"), opt("ADDRESS_2"), opt("ADDRESS_3"),
			opt("ADDRESS_4"), opt("ADDRESS_5"), opt("POSTCODE"), opt("COUNTRY_ID"),
		)},
		TypeRestrictions: {Fields: fields(req("TEXT"))},
		TypeLine: {Fields: fields(
			req("LINE_NUM"), opt("COMMODITY_GROUP"), opt("COMMODITY_ID"),
			opt("PREVIOUS_LINE_NUM"), opt("SUSPENDED_REASON"), req("GOODS_DESCRIPTION"),
			req("CONTROLLED_BY"), opt("CURRENCY"), opt("QUANTITY_UNIT"),
			opt("VALUE_ISSUED"), opt("QUANTITY_ISSUED"),
		)},
		TypeFileTrailer: {Fields: fields(req("TRANSACTION_COUNT"))},
	},
}

// GrammarFor selects the grammar matching a file-header data id.
func GrammarFor(dataID string) (Grammar, bool) {
	switch dataID {
	case UsageGrammar.DataID:
		return UsageGrammar, true
	case LicenceGrammar.DataID:
		return LicenceGrammar, true
	}
	return Grammar{}, false
}

func (g Grammar) minFields(recordType string) int {
	spec, ok := g.Records[recordType]
	if !ok {
		return 0
	}
	n := 0
	for i, f := range spec.Fields {
		if !f.Optional {
			n = i + 1
		}
	}
	return n
}
