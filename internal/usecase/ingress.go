package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chiefgate/internal/domain"
)

// LicenceIngress accepts licence operations submitted by LITE over HTTP.
// Submission is idempotent on the licence reference: resubmitting a known
// reference is reported as not created rather than an error.
type LicenceIngress struct {
	Payloads LicencePayloadRepository
	Log      *slog.Logger
}

func (i *LicenceIngress) Submit(ctx context.Context, licence domain.Licence) (domain.LicencePayload, bool, error) {
	if licence.Reference == "" {
		return domain.LicencePayload{}, false, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}
	if !licence.Action.Valid() {
		return domain.LicencePayload{}, false, fmt.Errorf("%w: unsupported action %q", domain.ErrValidation, licence.Action)
	}
	if _, err := domain.CategoryOf(licence.Type); err != nil {
		return domain.LicencePayload{}, false, fmt.Errorf("%w: %q", err, licence.Type)
	}
	if (licence.Action == domain.ActionUpdate || licence.Action == domain.ActionReplace) && licence.OldReference == "" {
		return domain.LicencePayload{}, false, fmt.Errorf("%w: old_reference is required for %s", domain.ErrValidation, licence.Action)
	}

	payload := domain.LicencePayload{
		LiteID:       licence.ID,
		Reference:    licence.Reference,
		Action:       licence.Action,
		Licence:      licence,
		OldLiteID:    licence.OldID,
		OldReference: licence.OldReference,
	}
	created, err := i.Payloads.Create(ctx, payload)
	if errors.Is(err, domain.ErrAlreadyExists) {
		existing, err := i.Payloads.GetByReference(ctx, licence.Reference)
		if err != nil {
			return domain.LicencePayload{}, false, err
		}
		i.Log.Info("duplicate licence submission", "reference", licence.Reference)
		return *existing, false, nil
	}
	if err != nil {
		return domain.LicencePayload{}, false, err
	}
	i.Log.Info("licence payload accepted",
		"reference", created.Reference, "action", created.Action, "payload_id", created.ID)
	return created, true, nil
}
