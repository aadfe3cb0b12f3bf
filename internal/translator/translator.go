// Package translator assembles CHIEF licenceData files from LITE licence
// payloads.
package translator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chiefgate/internal/chief"
	"chiefgate/internal/domain"
)

// chiefLicenceType maps LITE licence types onto CHIEF type codes. The set is
// closed; ingress validation rejects anything else.
var chiefLicenceType = map[string]string{
	"siel":     "SIE",
	"sicl":     "SIC",
	"sitl":     "SIT",
	"sil":      "SIE",
	"dfl":      "SIE",
	"sanction": "SIE",
	"oiel":     "OIE",
	"ogel":     "OGE",
	"oicl":     "OIC",
	"ogcl":     "OGC",
	"oil":      "OIE",
}

// unitCode maps three-letter quantity units onto CHIEF unit codes.
var unitCode = map[string]string{
	"NAR": "030",
	"GRM": "021",
	"KGM": "023",
	"MTK": "045",
	"MTR": "057",
	"LTR": "094",
	"MTQ": "058",
	"MLT": "040",
}

const (
	restrictionsText = "Provisos may apply please see licence"
	openGoodsText    = "Open Licence goods - see actual licence for information"
	countryUse       = "D"
)

// History resolves earlier payloads, used to decompose updates and to vet
// replace operations.
type History interface {
	PreviousPayload(ctx context.Context, reference string) (*domain.LicencePayload, error)
}

// GoodMapper records the (licence reference, line number) -> LITE good id
// mapping as goods lines are emitted.
type GoodMapper interface {
	UpsertGoodIDMapping(ctx context.Context, mapping domain.GoodIDMapping) error
}

type Translator struct {
	History History
	Goods   GoodMapper
}

// Batch is one outbound licenceData file.
type Batch struct {
	Payloads  []domain.LicencePayload
	Source    string
	RunNumber int
	Now       time.Time
}

// Build assembles and validates the CHIEF text for a batch. On any
// validation failure nothing is usable: the batch must not be sent.
func (t *Translator) Build(ctx context.Context, batch Batch) (string, error) {
	records := []chief.Record{chief.R(
		chief.TypeFileHeader,
		batch.Source, "CHIEF", "licenceData",
		batch.Now.Format(domain.FileTimestamp),
		strconv.Itoa(batch.RunNumber),
		"N",
	)}

	transactions := 0
	for _, payload := range batch.Payloads {
		blocks, n, err := t.licenceBlocks(ctx, payload)
		if err != nil {
			return "", fmt.Errorf("payload %s: %w", payload.Reference, err)
		}
		records = append(records, blocks...)
		transactions += n
	}
	records = append(records, chief.R(chief.TypeFileTrailer, strconv.Itoa(transactions)))

	text, err := chief.Encode(records)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEdifactValidation, err)
	}
	if err := chief.Validate(text, "licenceData"); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEdifactValidation, err)
	}
	return text, nil
}

func (t *Translator) licenceBlocks(ctx context.Context, payload domain.LicencePayload) ([]chief.Record, int, error) {
	switch payload.Action {
	case domain.ActionInsert:
		block, err := t.insertBlock(ctx, payload.Licence, payload.Reference, domain.ActionInsert)
		return block, 1, err

	case domain.ActionCancel:
		return cancelBlock(payload.Licence, payload.Reference), 1, nil

	case domain.ActionUpdate:
		return t.updateBlocks(ctx, payload)

	case domain.ActionReplace:
		prev, err := t.History.PreviousPayload(ctx, payload.Reference)
		if err != nil {
			return nil, 0, err
		}
		if prev == nil || prev.Action == domain.ActionInsert {
			return nil, 0, domain.ErrPreviousPayload
		}
		return t.updateBlocks(ctx, payload)

	default:
		return nil, 0, fmt.Errorf("unsupported action %q", payload.Action)
	}
}

// updateBlocks decomposes an update into a cancel of the old licence
// followed by an insert of the new one.
func (t *Translator) updateBlocks(ctx context.Context, payload domain.LicencePayload) ([]chief.Record, int, error) {
	oldLicence := payload.Licence
	if payload.OldReference != "" {
		if prev, err := t.History.PreviousPayload(ctx, payload.OldReference); err != nil {
			return nil, 0, err
		} else if prev != nil {
			oldLicence = prev.Licence
		}
	}
	records := cancelBlock(oldLicence, payload.OldReference)
	insert, err := t.insertBlock(ctx, payload.Licence, payload.Reference, domain.ActionInsert)
	if err != nil {
		return nil, 0, err
	}
	return append(records, insert...), 2, nil
}

// cancelBlock emits only the licence pair: no trader, countries or lines.
func cancelBlock(licence domain.Licence, reference string) []chief.Record {
	return []chief.Record{
		chief.R(chief.TypeLicence,
			transactionRef(reference),
			string(domain.ActionCancel),
			reference,
			chiefLicenceType[licence.Type],
			"E",
			chiefDate(licence.StartDate),
			chiefDate(licence.EndDate),
		),
		chief.End(chief.TypeLicence),
	}
}

func (t *Translator) insertBlock(ctx context.Context, licence domain.Licence, reference string, action domain.LicenceAction) ([]chief.Record, error) {
	category, err := domain.CategoryOf(licence.Type)
	if err != nil {
		return nil, err
	}

	records := []chief.Record{
		chief.R(chief.TypeLicence,
			transactionRef(reference),
			string(action),
			reference,
			chiefLicenceType[licence.Type],
			"E",
			chiefDate(licence.StartDate),
			chiefDate(licence.EndDate),
		),
		traderRecord(licence),
	}
	records = append(records, countryRecords(licence, category)...)

	if category == domain.CategoryStandard && licence.EndUser != nil {
		records = append(records, foreignTraderRecord(*licence.EndUser))
	}
	records = append(records, chief.R(chief.TypeRestrictions, restrictionsText))

	lines, err := t.goodsLines(ctx, licence, reference, category)
	if err != nil {
		return nil, err
	}
	records = append(records, lines...)
	return append(records, chief.End(chief.TypeLicence)), nil
}

func traderRecord(licence domain.Licence) chief.Record {
	org := licence.Organisation
	fields := []string{
		"", // TURN is never supplied
		org.EORINumber,
		chiefDate(licence.StartDate),
		chiefDate(licence.EndDate),
		org.Name,
	}
	fields = append(fields, padTo(wrapAddress(org.Address.Lines()), maxAddressLines)...)
	fields = append(fields, org.Address.Postcode)
	return chief.Record{Type: chief.TypeTrader, Fields: fields}
}

// countryRecords: open licences prefer the country group, falling back to
// one record per country; standard licences derive the destination from the
// end-user address.
func countryRecords(licence domain.Licence, category domain.LicenceCategory) []chief.Record {
	if category == domain.CategoryOpen {
		if licence.CountryGroup != "" {
			return []chief.Record{chief.R(chief.TypeCountry, "", licence.CountryGroup, countryUse)}
		}
		records := make([]chief.Record, 0, len(licence.Countries))
		for _, country := range licence.Countries {
			records = append(records, chief.R(chief.TypeCountry, country.ID, "", countryUse))
		}
		return records
	}
	if licence.EndUser != nil && licence.EndUser.Address.Country != nil {
		return []chief.Record{chief.R(chief.TypeCountry, licence.EndUser.Address.Country.ID, "", countryUse)}
	}
	return nil
}

func foreignTraderRecord(endUser domain.EndUser) chief.Record {
	raw := make([]string, 0, 5)
	for _, line := range endUser.Address.Lines() {
		raw = append(raw, sanitizeForeign(line))
	}
	fields := []string{sanitizeForeign(endUser.Name)}
	fields = append(fields, padTo(wrapAddress(raw), maxAddressLines)...)
	fields = append(fields, endUser.Address.Postcode)
	country := ""
	if endUser.Address.Country != nil {
		country = endUser.Address.Country.ID
	}
	fields = append(fields, country)
	return chief.Record{Type: chief.TypeForeignTrader, Fields: fields}
}

func (t *Translator) goodsLines(ctx context.Context, licence domain.Licence, reference string, category domain.LicenceCategory) ([]chief.Record, error) {
	if category == domain.CategoryOpen {
		return []chief.Record{chief.R(chief.TypeLine, "1", "", "", "", "", openGoodsText, "O")}, nil
	}
	records := make([]chief.Record, 0, len(licence.Goods))
	for i, good := range licence.Goods {
		lineNumber := i + 1
		code, ok := unitCode[good.Unit]
		if !ok {
			return nil, fmt.Errorf("good %d: %w: %q", lineNumber, domain.ErrUnknownUnit, good.Unit)
		}
		quantity := good.Quantity
		if good.Unit == "NAR" {
			quantity = quantity.Truncate(0)
		}
		records = append(records, chief.R(chief.TypeLine,
			strconv.Itoa(lineNumber), "", "", "", "",
			good.Description,
			"Q", "", code, "", quantity.String(),
		))
		if t.Goods != nil {
			mapping := domain.GoodIDMapping{Reference: reference, LineNumber: lineNumber, LiteID: good.ID}
			if err := t.Goods.UpsertGoodIDMapping(ctx, mapping); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

// transactionRef strips the leading country prefix segment and every slash:
// GBSIEL/2020/0000001/P becomes 20200000001P.
func transactionRef(reference string) string {
	parts := strings.Split(reference, "/")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.Join(parts, "")
}

func chiefDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}
