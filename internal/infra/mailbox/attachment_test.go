package mailbox

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"chiefgate/internal/config"
	"chiefgate/internal/domain"
)

func rawMessage(t *testing.T, filename, payload string) []byte {
	t.Helper()
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	msg := strings.Join([]string{
		"From: spire.out@example.com",
		"To: gateway@example.com",
		"Subject: " + filename,
		"Message-Id: <msg-1@example.com>",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="frontier"`,
		"",
		"--frontier",
		"Content-Type: text/plain",
		"",
		"see attached",
		"--frontier",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="` + filename + `"`,
		"Content-Transfer-Encoding: base64",
		"",
		encoded,
		"--frontier--",
		"",
	}, "\r\n")
	return []byte(msg)
}

func TestExtractAttachment(t *testing.T) {
	payload := "1\\fileHeader\\SPIRE\\CHIEF\\licenceData\\202006021240\\1\\N\n2\\fileTrailer\\0\n"
	filename := "CHIEF_LIVE_SPIRE_licenceData_1_202006021240"

	got, data, err := ExtractAttachment(rawMessage(t, filename, payload))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != filename {
		t.Fatalf("unexpected filename %q", got)
	}
	if string(data) != payload {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestExtractAttachment_NoAttachment(t *testing.T) {
	msg := strings.Join([]string{
		"From: spire.out@example.com",
		"Subject: hello",
		"Content-Type: text/plain",
		"",
		"no file here",
		"",
	}, "\r\n")
	_, _, err := ExtractAttachment([]byte(msg))
	if !errors.Is(err, domain.ErrNoAttachment) {
		t.Fatalf("expected ErrNoAttachment, got %v", err)
	}
}

func TestWhitelisted(t *testing.T) {
	client := NewClient(config.Mailbox{
		Name:      "spire",
		Host:      "pop.example.com",
		Whitelist: []string{"spire.out@example.com"},
	})
	if !client.Whitelisted("SPIRE.OUT@example.com") {
		t.Fatal("whitelist match should be case-insensitive")
	}
	if client.Whitelisted("intruder@example.com") {
		t.Fatal("unlisted sender must be rejected")
	}
}
