package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"chiefgate/internal/chief"
	"chiefgate/internal/config"
	"chiefgate/internal/demux"
	"chiefgate/internal/domain"
)

// InboundProcessor routes a retrieved mail by its extract type: SPIRE
// licence files are forwarded to HMRC under a fresh run number, HMRC
// replies are matched to their outbound mail, usage files are split
// between the two licensing systems, and SPIRE usage replies are forwarded
// back to HMRC.
type InboundProcessor struct {
	Cfg         config.Config
	WorkerID    string
	Mails       MailRepository
	LicenceData LicenceDataRepository
	UsageData   UsageDataRepository
	Outbox      OutboxRepository
	Demux       *demux.Demux
	Sender      MailSender
	Log         *slog.Logger
}

func (p *InboundProcessor) Process(ctx context.Context, env InboundEnvelope) error {
	switch env.Extract {
	case domain.ExtractLicenceData:
		return p.forwardLicenceData(ctx, env)
	case domain.ExtractLicenceReply:
		return p.handleLicenceReply(ctx, env)
	case domain.ExtractUsageData:
		return p.handleUsageData(ctx, env)
	case domain.ExtractUsageReply:
		return p.handleUsageReply(ctx, env)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownExtract, env.Extract)
	}
}

// forwardLicenceData relays a SPIRE licence file to HMRC. The file is
// re-stamped with the gateway's own run number; SPIRE's original number is
// kept so the reply can be translated back.
func (p *InboundProcessor) forwardLicenceData(ctx context.Context, env InboundEnvelope) error {
	file, err := chief.Parse(env.Data)
	if err != nil {
		return fmt.Errorf("parse licence file: %w", err)
	}
	refs := make([]string, 0, len(file.Transactions))
	for _, tx := range file.Transactions {
		refs = append(refs, tx.LicenceRef())
	}

	sourceRun := env.RunNumber
	mail, data, err := p.Outbox.EnqueueLicenceData(ctx, domain.OutboundBatch{
		Source:          domain.SourceSPIRE,
		SourceRunNumber: &sourceRun,
		LicenceRefs:     refs,
		RawData:         env.Raw,
		Build: func(runNumber int, now time.Time) (string, string, error) {
			chief.OverrideRunNumber(file, runNumber)
			text, err := file.Render()
			if err != nil {
				return "", "", err
			}
			name := domain.OutboundFilename(p.Cfg.SourceSystem, domain.ExtractLicenceData, runNumber, now)
			return name, text, nil
		},
		Send: func(filename, data string) error {
			if err := p.Sender.SendPayload(ctx, p.Cfg.HMRCAddress, filename, data); err != nil {
				return fmt.Errorf("%w: licence file to hmrc: %v", domain.ErrDeliveryFailed, err)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	p.Log.Info("spire licence file forwarded",
		"mail_id", mail.ID,
		"run_number", data.HMRCRunNumber,
		"source_run_number", sourceRun,
		"transactions", len(refs),
	)
	return nil
}

// handleLicenceReply correlates an HMRC reply with the outbound batch its
// run number names, records it, notifies on rejections, and forwards it to
// SPIRE when the batch originated there.
func (p *InboundProcessor) handleLicenceReply(ctx context.Context, env InboundEnvelope) error {
	data, err := p.LicenceData.FindByRunNumber(ctx, env.RunNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: run number %d", domain.ErrReplyUnmatched, env.RunNumber)
	}
	if err != nil {
		return err
	}
	mail, err := p.Mails.Get(ctx, data.MailID)
	if err != nil {
		return err
	}
	if mail.Status == domain.MailReplySent {
		p.Log.Info("duplicate reply ignored", "mail_id", mail.ID, "run_number", env.RunNumber)
		return nil
	}

	if err := p.Mails.AcquireLease(ctx, mail.ID, p.WorkerID, p.Cfg.LockDuration()); err != nil {
		return err
	}
	defer p.Mails.ReleaseLease(ctx, mail.ID, p.WorkerID)

	if err := p.Mails.AttachResponse(ctx, mail.ID, env.Filename, env.Data, env.Subject); err != nil {
		return err
	}

	reply, err := chief.ParseReply(env.Data)
	if err != nil {
		return fmt.Errorf("parse reply: %w", err)
	}
	if reply.HasRejections() {
		p.notifyRejections(ctx, mail.EDIFilename, reply)
	}

	if data.Source == domain.SourceSPIRE && data.SourceRunNumber != nil {
		text, err := chief.RewriteHeaderRunNumber(env.Data, *data.SourceRunNumber)
		if err != nil {
			return err
		}
		name := domain.ReplaceRunNumber(env.Filename, *data.SourceRunNumber)
		if err := p.Sender.SendPayload(ctx, p.Cfg.SpireAddress, name, text); err != nil {
			return fmt.Errorf("%w: reply to spire: %v", domain.ErrDeliveryFailed, err)
		}
		p.Log.Info("reply forwarded to spire",
			"mail_id", mail.ID, "source_run_number", *data.SourceRunNumber)
	}

	if err := p.Mails.MarkReplySent(ctx, mail.ID); err != nil {
		return err
	}
	p.Log.Info("licence reply recorded",
		"mail_id", mail.ID,
		"run_number", env.RunNumber,
		"accepted", len(reply.Accepted),
		"rejected", len(reply.Rejected),
	)
	return nil
}

// handleUsageData stores an HMRC usage file and splits it: LITE licences
// are queued for API delivery, the remainder is re-emitted to SPIRE. The
// mail occupies the conversation slot until every half is answered.
func (p *InboundProcessor) handleUsageData(ctx context.Context, env InboundEnvelope) error {
	// Split before anything durable. A file that cannot be parsed must
	// never occupy the conversation slot: its quarantine would otherwise
	// leave a pending envelope nothing can close.
	split, err := p.Demux.Run(ctx, env.Data)
	if err != nil {
		return err
	}

	mail, err := p.Mails.CreateInSlot(ctx, domain.Mail{
		ExtractType: domain.ExtractUsageData,
		Status:      domain.MailPending,
		EDIFilename: env.Filename,
		EDIData:     env.Data,
		RawData:     env.Raw,
	})
	if errors.Is(err, domain.ErrSlotOccupied) {
		resumed, ok := p.resumeUsageMail(ctx, env)
		if !ok {
			return err
		}
		mail = resumed
	} else if err != nil {
		return err
	}

	usage, err := p.usageRecord(ctx, mail.ID, env.RunNumber)
	if err != nil {
		return err
	}
	if err := p.Demux.RecordMappings(ctx, split, usage.ID); err != nil {
		return err
	}

	usage.HasLiteData = split.HasLiteData
	usage.HasSpireData = split.HasSpireData
	usage.SpireData = split.SpireText
	usage.SpireRunNumber = env.RunNumber
	usage.LicenceRefs = nil
	for _, tx := range split.File.Transactions {
		usage.LicenceRefs = append(usage.LicenceRefs, tx.LicenceRef())
	}
	if split.HasLiteData {
		split.Lite.UsageDataID = strconv.FormatInt(usage.ID, 10)
		payload, err := json.Marshal(split.Lite)
		if err != nil {
			return fmt.Errorf("marshal lite payload: %w", err)
		}
		usage.LitePayload = string(payload)
	}
	if err := p.UsageData.Update(ctx, usage); err != nil {
		return err
	}

	switch {
	case split.HasSpireData:
		// The remainder travels by mail, so the envelope waits in
		// reply_pending until SPIRE's usage reply closes it.
		if err := p.Sender.SendPayload(ctx, p.Cfg.SpireAddress, env.Filename, split.SpireText); err != nil {
			return fmt.Errorf("%w: usage remainder to spire: %v", domain.ErrDeliveryFailed, err)
		}
		if err := p.Mails.MarkSent(ctx, mail.ID); err != nil {
			return err
		}
	case split.HasLiteData:
		// Nothing to mail; the delivery worker closes the conversation
		// once LITE accepts the payload.
	default:
		if err := p.Mails.MarkReplySent(ctx, mail.ID); err != nil {
			return err
		}
	}

	p.Log.Info("usage file split",
		"mail_id", mail.ID,
		"run_number", env.RunNumber,
		"lite", split.HasLiteData,
		"spire", split.HasSpireData,
	)
	return nil
}

// resumeUsageMail recovers a usage conversation interrupted after its mail
// row was created, typically by a failed SPIRE delivery. The occupant must
// be the same file, still unsent; anything else keeps the slot closed.
func (p *InboundProcessor) resumeUsageMail(ctx context.Context, env InboundEnvelope) (domain.Mail, bool) {
	open, err := p.Mails.FindOpen(ctx)
	if err != nil || open == nil {
		return domain.Mail{}, false
	}
	if open.ExtractType != domain.ExtractUsageData ||
		open.Status != domain.MailPending ||
		open.EDIFilename != env.Filename {
		return domain.Mail{}, false
	}
	p.Log.Info("resuming interrupted usage mail", "mail_id", open.ID, "filename", env.Filename)
	return *open, true
}

// usageRecord finds the usage row for a resumed mail, or creates one on the
// first pass.
func (p *InboundProcessor) usageRecord(ctx context.Context, mailID int64, runNumber int) (domain.UsageData, error) {
	usage, err := p.UsageData.FindByMailID(ctx, mailID)
	if errors.Is(err, domain.ErrNotFound) {
		return p.UsageData.Create(ctx, domain.UsageData{
			MailID:        mailID,
			HMRCRunNumber: runNumber,
		})
	}
	if err != nil {
		return domain.UsageData{}, err
	}
	return *usage, nil
}

// handleUsageReply forwards SPIRE's answer to a usage file back to HMRC
// under HMRC's original run number and closes the conversation.
func (p *InboundProcessor) handleUsageReply(ctx context.Context, env InboundEnvelope) error {
	mail, err := p.Mails.FindOpen(ctx)
	if err != nil {
		return err
	}
	if mail == nil || mail.ExtractType != domain.ExtractUsageData || mail.Status != domain.MailReplyPending {
		return fmt.Errorf("%w: usage reply run %d", domain.ErrReplyUnmatched, env.RunNumber)
	}
	usage, err := p.UsageData.FindByMailID(ctx, mail.ID)
	if err != nil {
		return err
	}
	if env.RunNumber != usage.SpireRunNumber {
		return fmt.Errorf("%w: usage reply run %d, conversation expects %d",
			domain.ErrReplyUnmatched, env.RunNumber, usage.SpireRunNumber)
	}

	if err := p.Mails.AcquireLease(ctx, mail.ID, p.WorkerID, p.Cfg.LockDuration()); err != nil {
		return err
	}
	defer p.Mails.ReleaseLease(ctx, mail.ID, p.WorkerID)

	if err := p.Mails.AttachResponse(ctx, mail.ID, env.Filename, env.Data, env.Subject); err != nil {
		return err
	}

	text, err := chief.RewriteHeaderRunNumber(env.Data, usage.HMRCRunNumber)
	if err != nil {
		return err
	}
	name := domain.ReplaceRunNumber(env.Filename, usage.HMRCRunNumber)
	if err := p.Sender.SendPayload(ctx, p.Cfg.HMRCAddress, name, text); err != nil {
		return fmt.Errorf("%w: usage reply to hmrc: %v", domain.ErrDeliveryFailed, err)
	}
	if err := p.Mails.MarkReplySent(ctx, mail.ID); err != nil {
		return err
	}
	p.Log.Info("usage reply forwarded",
		"mail_id", mail.ID, "hmrc_run_number", usage.HMRCRunNumber)
	return nil
}

func (p *InboundProcessor) notifyRejections(ctx context.Context, filename string, reply *chief.Reply) {
	var b strings.Builder
	fmt.Fprintf(&b, "HMRC rejected transactions in reply to %s (run %s).\n\n", filename, reply.RunNumber)
	for _, rej := range reply.Rejected {
		fmt.Fprintf(&b, "Transaction %s:\n", rej.TransactionRef)
		for _, e := range rej.Errors {
			fmt.Fprintf(&b, "  %s %s\n", e.Code, e.Text)
		}
	}
	for _, e := range reply.FileErrors {
		fmt.Fprintf(&b, "File error: %s %s\n", e.Code, e.Text)
	}
	subject := "Licence rejected by HMRC"
	if err := p.Sender.SendNotification(ctx, p.Cfg.NotifyUsers, subject, b.String()); err != nil {
		p.Log.Error("rejection notification failed", "error", err)
	}
}
