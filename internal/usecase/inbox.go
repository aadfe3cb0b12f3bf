package usecase

import (
	"context"
	"errors"
	"log/slog"

	"chiefgate/internal/domain"
	"chiefgate/internal/infra/mailbox"
)

// InboxDrainer runs one poll over the configured POP3 mailboxes. Messages
// are peeked first; only whitelisted, unseen messages are retrieved. A
// message is marked READ strictly after its envelope has been handed to the
// processor, so a crash replays it rather than losing it.
type InboxDrainer struct {
	Inboxes    []Inbox
	ReadStatus ReadStatusRepository
	Processor  *InboundProcessor
	CheckLimit int
	Log        *slog.Logger
}

// InboundEnvelope is a retrieved message reduced to what the processor
// needs.
type InboundEnvelope struct {
	Mailbox   string
	MessageID string
	Sender    string
	Subject   string
	Filename  string
	Data      string
	Raw       string
	Extract   domain.ExtractType
	RunNumber int
}

func (d *InboxDrainer) Tick(ctx context.Context) error {
	var firstErr error
	for _, inbox := range d.Inboxes {
		if err := d.drain(ctx, inbox); err != nil {
			d.Log.Error("mailbox drain failed", "mailbox", inbox.Mailbox(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *InboxDrainer) drain(ctx context.Context, inbox Inbox) error {
	session, err := inbox.Connect()
	if err != nil {
		return err
	}
	defer session.Quit()

	ids, err := session.List()
	if err != nil {
		return err
	}
	if d.CheckLimit > 0 && len(ids) > d.CheckLimit {
		ids = ids[:d.CheckLimit]
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.handle(ctx, inbox, session, id); err != nil {
			return err
		}
	}
	return nil
}

func (d *InboxDrainer) handle(ctx context.Context, inbox Inbox, session InboxSession, id int) error {
	header, err := session.Peek(id)
	if err != nil {
		return err
	}
	if header.MessageID == "" {
		d.Log.Warn("message without Message-Id skipped", "mailbox", inbox.Mailbox(), "pop3_id", id)
		return nil
	}

	seen, err := d.ReadStatus.Status(ctx, inbox.Mailbox(), header.MessageID)
	if err != nil {
		return err
	}
	if seen == domain.ReadStatusRead || seen == domain.ReadStatusUnprocessable {
		return nil
	}

	if !inbox.Whitelisted(header.Sender) {
		d.Log.Warn("sender not whitelisted",
			"mailbox", inbox.Mailbox(), "sender", header.Sender, "message_id", header.MessageID)
		return d.ReadStatus.Mark(ctx, inbox.Mailbox(), header.MessageID, domain.ReadStatusUnprocessable)
	}

	raw, err := session.Retrieve(id)
	if err != nil {
		return err
	}

	envelope, err := d.envelope(inbox.Mailbox(), header, raw)
	if err != nil {
		d.Log.Error("unprocessable message",
			"mailbox", inbox.Mailbox(), "message_id", header.MessageID, "error", err)
		return d.ReadStatus.Mark(ctx, inbox.Mailbox(), header.MessageID, domain.ReadStatusUnprocessable)
	}

	err = d.Processor.Process(ctx, envelope)
	switch {
	case errors.Is(err, domain.ErrSlotOccupied),
		errors.Is(err, domain.ErrLeaseHeld),
		errors.Is(err, domain.ErrDeliveryFailed):
		// Transient: the slot, the lease, or the outbound SMTP hop will
		// clear. Leave unread so the next drain retries the message.
		d.Log.Info("inbound mail deferred",
			"mailbox", inbox.Mailbox(), "message_id", header.MessageID, "reason", err)
		return nil
	case err != nil:
		d.Log.Error("inbound processing failed",
			"mailbox", inbox.Mailbox(), "message_id", header.MessageID, "error", err)
		return d.ReadStatus.Mark(ctx, inbox.Mailbox(), header.MessageID, domain.ReadStatusUnprocessable)
	}
	return d.ReadStatus.Mark(ctx, inbox.Mailbox(), header.MessageID, domain.ReadStatusRead)
}

func (d *InboxDrainer) envelope(box string, header mailbox.Header, raw []byte) (InboundEnvelope, error) {
	filename, data, err := mailbox.ExtractAttachment(raw)
	if err != nil {
		return InboundEnvelope{}, err
	}
	name := header.Subject
	if name == "" {
		name = filename
	}
	extract, err := domain.ExtractTypeFromName(name)
	if err != nil {
		extract, err = domain.ExtractTypeFromName(filename)
		if err != nil {
			return InboundEnvelope{}, err
		}
	}
	runNumber, err := domain.RunNumberFromName(filename)
	if err != nil {
		return InboundEnvelope{}, err
	}
	return InboundEnvelope{
		Mailbox:   box,
		MessageID: header.MessageID,
		Sender:    header.Sender,
		Subject:   header.Subject,
		Filename:  filename,
		Data:      string(data),
		Raw:       string(raw),
		Extract:   extract,
		RunNumber: runNumber,
	}, nil
}
