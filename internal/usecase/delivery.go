package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"chiefgate/internal/chief"
	"chiefgate/internal/domain"
)

// UsageDelivery pushes the LITE half of split usage files over the LITE
// API. Delivery is idempotent on LITE's side (208 means already
// processed), so a crash after send and before record is replay-safe.
type UsageDelivery struct {
	UsageData UsageDataRepository
	Mails     MailRepository
	Lite      LiteClient
	Log       *slog.Logger
}

func (d *UsageDelivery) Tick(ctx context.Context) error {
	pending, err := d.UsageData.PendingLiteDelivery(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, usage := range pending {
		if err := d.deliver(ctx, usage); err != nil {
			d.Log.Error("usage delivery failed", "usage_data_id", usage.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *UsageDelivery) deliver(ctx context.Context, usage domain.UsageData) error {
	var payload chief.LiteUsagePayload
	if err := json.Unmarshal([]byte(usage.LitePayload), &payload); err != nil {
		return fmt.Errorf("unmarshal stored payload: %w", err)
	}

	delivery, err := d.Lite.SendUsage(ctx, strconv.FormatInt(usage.ID, 10), &payload)
	if err != nil {
		return err
	}
	if err := d.UsageData.RecordLiteDelivery(ctx, usage.ID, delivery.Body, delivery.Accepted, delivery.Rejected); err != nil {
		return err
	}

	// With no SPIRE half there is no usage reply to wait for; the LITE
	// verdict completes the conversation, straight from pending with no
	// mailed response to record in between.
	if !usage.HasSpireData {
		if err := d.Mails.MarkReplySent(ctx, usage.MailID); err != nil {
			return err
		}
	}

	d.Log.Info("usage payload delivered",
		"usage_data_id", usage.ID,
		"status", delivery.Status,
		"accepted", len(delivery.Accepted),
		"rejected", len(delivery.Rejected),
	)
	return nil
}
