package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chiefgate/internal/config"
	"chiefgate/internal/domain"
	"chiefgate/internal/translator"
)

// LicenceDispatcher drains unprocessed LITE licence payloads into one
// outbound CHIEF file per tick. The enqueue is slot-guarded: while another
// conversation with HMRC is open the tick is a no-op and the payloads wait.
type LicenceDispatcher struct {
	Cfg        config.Config
	Payloads   LicencePayloadRepository
	Outbox     OutboxRepository
	Mappings   MappingRepository
	Sender     MailSender
	Translator *translator.Translator
	Log        *slog.Logger
}

func (d *LicenceDispatcher) Tick(ctx context.Context) error {
	payloads, err := d.Payloads.FindUnprocessed(ctx)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	ids := make([]string, 0, len(payloads))
	refs := make([]string, 0, len(payloads))
	for _, p := range payloads {
		ids = append(ids, p.ID)
		refs = append(refs, p.Reference)
	}

	// Record the reference before transmission. Once the file is on the
	// wire HMRC can answer, and the reply path needs the LITE id ready;
	// the upsert is idempotent, so a deferred tick just repeats it.
	for _, p := range payloads {
		mapping := domain.LicenceIDMapping{Reference: p.Reference, LiteID: p.LiteID}
		if err := d.Mappings.UpsertLicenceIDMapping(ctx, mapping); err != nil {
			return err
		}
	}

	mail, data, err := d.Outbox.EnqueueLicenceData(ctx, domain.OutboundBatch{
		Source:      domain.SourceLITE,
		PayloadIDs:  ids,
		LicenceRefs: refs,
		Build: func(runNumber int, now time.Time) (string, string, error) {
			text, err := d.Translator.Build(ctx, translator.Batch{
				Payloads:  payloads,
				Source:    d.Cfg.SourceSystem,
				RunNumber: runNumber,
				Now:       now,
			})
			if err != nil {
				return "", "", err
			}
			name := domain.OutboundFilename(d.Cfg.SourceSystem, domain.ExtractLicenceData, runNumber, now)
			return name, text, nil
		},
		Send: func(filename, data string) error {
			return d.Sender.SendPayload(ctx, d.Cfg.HMRCAddress, filename, data)
		},
	})
	if errors.Is(err, domain.ErrSlotOccupied) {
		d.Log.Info("licence dispatch deferred, conversation in flight", "payloads", len(payloads))
		return nil
	}
	if err != nil {
		return err
	}

	d.Log.Info("licence batch transmitted",
		"mail_id", mail.ID,
		"run_number", data.HMRCRunNumber,
		"payloads", len(payloads),
		"filename", mail.EDIFilename,
	)
	return nil
}
