package mailbox

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"chiefgate/internal/config"
)

// Sender transmits outbound gateway mail. Each payload message carries the
// CHIEF file as its single attachment, subject duplicating the filename.
type Sender struct {
	cfg config.Config
}

func NewSender(cfg config.Config) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) client() (*gomail.Client, error) {
	return gomail.NewClient(s.cfg.SMTPHost,
		gomail.WithPort(s.cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.SMTPUsername),
		gomail.WithPassword(s.cfg.SMTPPassword),
	)
}

// SendPayload mails a CHIEF file to a single recipient.
func (s *Sender) SendPayload(ctx context.Context, to, filename, data string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(filename)
	msg.SetBodyString(gomail.TypeTextPlain, "")
	if err := msg.AttachReader(filename, strings.NewReader(data)); err != nil {
		return fmt.Errorf("attach %s: %w", filename, err)
	}
	client, err := s.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", filename, to, err)
	}
	return nil
}

// SendNotification mails a plain-text notice to the configured users.
func (s *Sender) SendNotification(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("recipient addresses: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	client, err := s.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
