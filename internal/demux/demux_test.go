package demux

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"chiefgate/internal/chief"
	"chiefgate/internal/domain"
)

type fakePayloads struct {
	refs map[string]bool
}

func (f *fakePayloads) GetByReference(_ context.Context, reference string) (*domain.LicencePayload, error) {
	if f.refs[reference] {
		return &domain.LicencePayload{Reference: reference}, nil
	}
	return nil, domain.ErrNotFound
}

type fakeMappings struct {
	licences map[string]string
	recorded []domain.TransactionMapping
}

func (f *fakeMappings) LicenceID(reference string) (string, bool) {
	id, ok := f.licences[reference]
	return id, ok
}

func (f *fakeMappings) GoodID(string, int) (string, bool) { return "", false }

func (f *fakeMappings) UpsertTransactionMapping(_ context.Context, m domain.TransactionMapping) error {
	f.recorded = append(f.recorded, m)
	return nil
}

func knownPayloads(refs ...string) *fakePayloads {
	f := &fakePayloads{refs: map[string]bool{}}
	for _, ref := range refs {
		f.refs[ref] = true
	}
	return f
}

func usageFileWith(t *testing.T, refs ...string) string {
	t.Helper()
	records := []chief.Record{chief.R(chief.TypeFileHeader, "CHIEF", "SPIRE", "usageData", "201901130300", "49543")}
	for i, ref := range refs {
		records = append(records,
			chief.R(chief.TypeLicenceUsage, "LU04148/0000"+strconv.Itoa(i+1), "open", ref, "O"),
			chief.R(chief.TypeLine, "1", "17.5", "0", "GBP"),
			chief.End(chief.TypeLine),
			chief.End(chief.TypeLicenceUsage),
		)
	}
	records = append(records, chief.R(chief.TypeFileTrailer, strconv.Itoa(len(refs))))
	out, err := chief.Encode(records)
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	return out
}

func TestRun_SplitsByPayloadExistence(t *testing.T) {
	refs := []string{
		"GBOGE2011/56789", "GBOGE2017/98765", "GBSIE2018/45678",
		"GBSIEL/2020/0000001/P", "GBSIEL/2020/0000002/P", "GBOGE2014/23456", "GBSIEL/2020/0000003/P",
	}
	payloads := knownPayloads(
		"GBSIEL/2020/0000001/P", "GBSIEL/2020/0000002/P", "GBSIEL/2020/0000003/P")
	mappings := &fakeMappings{licences: map[string]string{
		"GBSIEL/2020/0000001/P": "f2c7c4a5",
		"GBSIEL/2020/0000002/P": "8a3e4f11",
		"GBSIEL/2020/0000003/P": "0d9b2c70",
	}}
	d := &Demux{Payloads: payloads, Mappings: mappings}

	split, err := d.Run(context.Background(), usageFileWith(t, refs...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !split.HasLiteData || !split.HasSpireData {
		t.Fatalf("expected both halves populated, got lite=%v spire=%v", split.HasLiteData, split.HasSpireData)
	}
	if len(split.Lite.Licences) != 3 {
		t.Fatalf("expected 3 LITE licences, got %d", len(split.Lite.Licences))
	}
	if len(split.LiteRefs) != 3 || split.LiteRefs[0] != "GBSIEL/2020/0000001/P" {
		t.Fatalf("unexpected LITE refs %v", split.LiteRefs)
	}
	if !strings.Contains(split.SpireText, `\fileTrailer\4`+"\n") {
		t.Fatalf("remainder trailer should count 4, got %q", split.SpireText)
	}
	for _, ref := range []string{"GBOGE2011/56789", "GBOGE2017/98765", "GBSIE2018/45678", "GBOGE2014/23456"} {
		if !strings.Contains(split.SpireText, ref) {
			t.Fatalf("remainder missing %s", ref)
		}
	}
	if strings.Contains(split.SpireText, "GBSIEL/2020/0000001/P") {
		t.Fatal("LITE transaction leaked into remainder")
	}
	if reparsed, err := chief.Parse(split.SpireText); err != nil {
		t.Fatalf("remainder must reparse: %v", err)
	} else if reparsed.RunNumber() != "49543" {
		t.Fatalf("remainder must keep the source run number, got %q", reparsed.RunNumber())
	}
}

// A licence submitted through the gateway routes to LITE even before its
// CHIEF reply populated the id-mapping table; the projection carries a
// null id for it.
func TestRun_UnmappedLiteLicenceStillRoutesLite(t *testing.T) {
	d := &Demux{
		Payloads: knownPayloads("GBSIEL/2020/0000001/P"),
		Mappings: &fakeMappings{},
	}
	split, err := d.Run(context.Background(), usageFileWith(t, "GBSIEL/2020/0000001/P"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !split.HasLiteData || split.HasSpireData {
		t.Fatalf("expected LITE-only split, got lite=%v spire=%v", split.HasLiteData, split.HasSpireData)
	}
	if len(split.Lite.Licences) != 1 || split.Lite.Licences[0].ID != nil {
		t.Fatalf("expected one licence with null id, got %+v", split.Lite.Licences)
	}
}

// The inverse: an id mapping alone does not make a licence LITE's. Without
// a stored payload the transaction stays on the SPIRE side.
func TestRun_MappingWithoutPayloadRoutesSpire(t *testing.T) {
	d := &Demux{
		Payloads: knownPayloads(),
		Mappings: &fakeMappings{licences: map[string]string{"GBSIEL/2020/0000001/P": "f2c7c4a5"}},
	}
	split, err := d.Run(context.Background(), usageFileWith(t, "GBSIEL/2020/0000001/P"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if split.HasLiteData {
		t.Fatal("licence without a payload must not route to LITE")
	}
	if !split.HasSpireData || !strings.Contains(split.SpireText, "GBSIEL/2020/0000001/P") {
		t.Fatalf("expected the transaction in the remainder, got %q", split.SpireText)
	}
}

func TestRecordMappings_OnePerUsageLine(t *testing.T) {
	mappings := &fakeMappings{}
	d := &Demux{Payloads: knownPayloads("GBSIEL/2020/0000001/P"), Mappings: mappings}

	records := []chief.Record{
		chief.R(chief.TypeFileHeader, "CHIEF", "SPIRE", "usageData", "201901130300", "49543"),
		chief.R(chief.TypeLicenceUsage, "LU04148/00001", "open", "GBSIEL/2020/0000001/P", "O"),
		chief.R(chief.TypeLine, "1", "17.5", "0", "GBP"),
		chief.End(chief.TypeLine),
		chief.R(chief.TypeLine, "2", "3.0", "0", "GBP"),
		chief.End(chief.TypeLine),
		chief.End(chief.TypeLicenceUsage),
		chief.R(chief.TypeLicenceUsage, "LU04148/00002", "open", "GBOGE2011/56789", "O"),
		chief.R(chief.TypeLine, "1", "1.0", "0", "GBP"),
		chief.End(chief.TypeLine),
		chief.End(chief.TypeLicenceUsage),
		chief.R(chief.TypeFileTrailer, "2"),
	}
	text, err := chief.Encode(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	split, err := d.Run(context.Background(), text)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := d.RecordMappings(context.Background(), split, 7); err != nil {
		t.Fatalf("record mappings: %v", err)
	}

	if len(mappings.recorded) != 2 {
		t.Fatalf("expected one mapping per LITE usage line, got %d: %+v", len(mappings.recorded), mappings.recorded)
	}
	for i, want := range []int{1, 2} {
		got := mappings.recorded[i]
		if got.Reference != "GBSIEL/2020/0000001/P" || got.LineNumber != want ||
			got.UsageDataID != 7 || got.UsageTransaction != "LU04148/00001" {
			t.Fatalf("mapping %d: %+v", i, got)
		}
	}
}

func TestRun_HasNoSideEffects(t *testing.T) {
	mappings := &fakeMappings{}
	d := &Demux{Payloads: knownPayloads("GBSIEL/2020/0000001/P"), Mappings: mappings}
	if _, err := d.Run(context.Background(), usageFileWith(t, "GBSIEL/2020/0000001/P")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(mappings.recorded) != 0 {
		t.Fatalf("run must not write mappings, got %+v", mappings.recorded)
	}
}

func TestRun_AllSpire(t *testing.T) {
	d := &Demux{Payloads: knownPayloads(), Mappings: &fakeMappings{}}
	split, err := d.Run(context.Background(), usageFileWith(t, "GBOGE2011/56789"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if split.HasLiteData || split.Lite != nil {
		t.Fatal("no LITE half expected")
	}
	if !split.HasSpireData {
		t.Fatal("expected remainder")
	}
}

func TestRun_RejectsWrongDataID(t *testing.T) {
	records := []chief.Record{
		chief.R(chief.TypeFileHeader, "SPIRE", "CHIEF", "licenceData", "201901130300", "1", "N"),
		chief.R(chief.TypeFileTrailer, "0"),
	}
	text, err := chief.Encode(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := &Demux{Payloads: knownPayloads(), Mappings: &fakeMappings{}}
	if _, err := d.Run(context.Background(), text); err == nil {
		t.Fatal("expected data-id rejection")
	}
}
