package usecase

import (
	"context"

	"chiefgate/internal/config"
)

// Health is the gateway's self-assessment: conversations stuck awaiting a
// reply and payloads the dispatcher has not picked up in time.
type Health struct {
	Healthy             bool  `json:"healthy"`
	StuckPendingMail    int64 `json:"stuck_pending_mail"`
	UnprocessedPayloads int64 `json:"unprocessed_payloads"`
}

type HealthReporter struct {
	Cfg      config.Config
	Mails    MailRepository
	Payloads LicencePayloadRepository
}

func (h *HealthReporter) Report(ctx context.Context) (Health, error) {
	stuck, err := h.Mails.CountStuckPending(ctx, h.Cfg.AwaitingReplyThreshold())
	if err != nil {
		return Health{}, err
	}
	unprocessed, err := h.Payloads.CountUnprocessedOlderThan(ctx, h.Cfg.UnprocessedPayloadThreshold())
	if err != nil {
		return Health{}, err
	}
	return Health{
		Healthy:             stuck == 0 && unprocessed == 0,
		StuckPendingMail:    stuck,
		UnprocessedPayloads: unprocessed,
	}, nil
}
