package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"

	"chiefgate/internal/domain"
)

// ExtractAttachment pulls the single binary attachment out of a raw MIME
// message. Messages carry exactly one payload file; extra attachments are
// ignored, none at all is an error.
func ExtractAttachment(raw []byte) (string, []byte, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", nil, fmt.Errorf("parse mime: %w", err)
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("read mime part: %w", err)
		}
		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return "", nil, fmt.Errorf("read attachment %s: %w", filename, err)
		}
		return filename, data, nil
	}
	return "", nil, domain.ErrNoAttachment
}
