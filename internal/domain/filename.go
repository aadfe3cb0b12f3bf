package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RunNumberModulus is the CHIEF run-number wrap point: 99999 is followed by 0.
const RunNumberModulus = 100000

// NextRunNumber returns the run number following last.
func NextRunNumber(last int) int {
	return (last + 1) % RunNumberModulus
}

var dataIDByExtract = map[ExtractType]string{
	ExtractLicenceData:  "licenceData",
	ExtractLicenceReply: "licenceReply",
	ExtractUsageData:    "usageData",
	ExtractUsageReply:   "usageReply",
}

var extractByDataID = map[string]ExtractType{
	"licenceData":  ExtractLicenceData,
	"licenceReply": ExtractLicenceReply,
	"usageData":    ExtractUsageData,
	"usageReply":   ExtractUsageReply,
}

// DataID is the CHIEF file-header token for an extract type.
func DataID(extract ExtractType) string {
	return dataIDByExtract[extract]
}

// FileTimestamp is the timestamp layout used in CHIEF filenames and headers.
const FileTimestamp = "200601021504"

// OutboundFilename builds the outbound naming convention
// CHIEF_LIVE_<SRC>_<DATA_ID>_<RUN>_<YYYYMMDDhhmm>.
func OutboundFilename(src string, extract ExtractType, runNumber int, at time.Time) string {
	return fmt.Sprintf("CHIEF_LIVE_%s_%s_%d_%s", src, DataID(extract), runNumber, at.Format(FileTimestamp))
}

// ExtractTypeFromName classifies a filename or subject by its data-id token.
// Matching is case sensitive; both the outbound convention and HMRC's
// ILBDOTI_live_CHIEF_<kind>_<RUN>_<ts> naming are accepted.
func ExtractTypeFromName(name string) (ExtractType, error) {
	for _, token := range strings.Split(name, "_") {
		if extract, ok := extractByDataID[token]; ok {
			return extract, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExtract, name)
}

// ReplaceRunNumber swaps the run number token in a CHIEF filename, used
// when a file is forwarded under the counterparty's numbering.
func ReplaceRunNumber(name string, runNumber int) string {
	tokens := strings.Split(name, "_")
	for i, token := range tokens {
		if _, ok := extractByDataID[token]; !ok {
			continue
		}
		if i+1 < len(tokens) {
			tokens[i+1] = strconv.Itoa(runNumber)
		}
		break
	}
	return strings.Join(tokens, "_")
}

// RunNumberFromName decodes the run number token that follows the data-id
// token in a CHIEF filename.
func RunNumberFromName(name string) (int, error) {
	tokens := strings.Split(name, "_")
	for i, token := range tokens {
		if _, ok := extractByDataID[token]; !ok {
			continue
		}
		if i+1 >= len(tokens) {
			break
		}
		run, err := strconv.Atoi(tokens[i+1])
		if err != nil {
			return 0, fmt.Errorf("run number in %q: %w", name, err)
		}
		return run, nil
	}
	return 0, fmt.Errorf("no run number in %q", name)
}
