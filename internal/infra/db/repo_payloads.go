package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chiefgate/internal/domain"
)

type LicencePayloadRepository struct {
	db *gorm.DB
}

func NewLicencePayloadRepository(db *gorm.DB) *LicencePayloadRepository {
	return &LicencePayloadRepository{db: db}
}

// Create stores a submitted licence operation. A payload with the same
// reference already on file maps to ErrAlreadyExists so ingress can answer
// with 304 instead of duplicating work.
func (r *LicencePayloadRepository) Create(ctx context.Context, payload domain.LicencePayload) (domain.LicencePayload, error) {
	if r.db == nil {
		return domain.LicencePayload{}, errDBUnavailable
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.ReceivedAt.IsZero() {
		payload.ReceivedAt = time.Now().UTC()
	}
	model, err := licencePayloadModelFromDomain(payload)
	if err != nil {
		return domain.LicencePayload{}, err
	}
	err = r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.LicencePayload{}, domain.ErrAlreadyExists
		}
		return domain.LicencePayload{}, err
	}
	return payload, nil
}

func (r *LicencePayloadRepository) GetByReference(ctx context.Context, reference string) (*domain.LicencePayload, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model LicencePayloadModel
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return licencePayloadFromModel(model)
}

// FindUnprocessed returns payloads awaiting transmission, oldest first with
// the reference as tiebreak so batch order is deterministic.
func (r *LicencePayloadRepository) FindUnprocessed(ctx context.Context) ([]domain.LicencePayload, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []LicencePayloadModel
	err := r.db.WithContext(ctx).
		Where("is_processed = ? AND skip_process = ?", false, false).
		Order("received_at ASC, reference ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.LicencePayload, 0, len(models))
	for _, model := range models {
		payload, err := licencePayloadFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *payload)
	}
	return out, nil
}

func (r *LicencePayloadRepository) MarkProcessed(ctx context.Context, ids []string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&LicencePayloadModel{}).
		Where("id IN ?", ids).
		Update("is_processed", true).Error
}

// PreviousPayload returns the stored payload for a reference, nil when the
// gateway has never seen it. Used to decompose updates and vet replaces.
func (r *LicencePayloadRepository) PreviousPayload(ctx context.Context, reference string) (*domain.LicencePayload, error) {
	payload, err := r.GetByReference(ctx, reference)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return payload, err
}

// CountUnprocessedOlderThan feeds the health surface: payloads that have
// sat unprocessed beyond the poll threshold indicate a stuck dispatcher.
func (r *LicencePayloadRepository) CountUnprocessedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var n int64
	err := r.db.WithContext(ctx).
		Model(&LicencePayloadModel{}).
		Where("is_processed = ? AND skip_process = ? AND received_at < ?", false, false, time.Now().UTC().Add(-age)).
		Count(&n).Error
	return n, err
}

func licencePayloadModelFromDomain(payload domain.LicencePayload) (LicencePayloadModel, error) {
	body, err := json.Marshal(payload.Licence)
	if err != nil {
		return LicencePayloadModel{}, fmt.Errorf("marshal licence body: %w", err)
	}
	return LicencePayloadModel{
		ID:           payload.ID,
		LiteID:       payload.LiteID,
		Reference:    payload.Reference,
		Action:       string(payload.Action),
		Data:         body,
		ReceivedAt:   payload.ReceivedAt.UTC(),
		IsProcessed:  payload.IsProcessed,
		SkipProcess:  payload.SkipProcess,
		OldLiteID:    payload.OldLiteID,
		OldReference: payload.OldReference,
	}, nil
}

func licencePayloadFromModel(model LicencePayloadModel) (*domain.LicencePayload, error) {
	var licence domain.Licence
	if err := json.Unmarshal(model.Data, &licence); err != nil {
		return nil, fmt.Errorf("unmarshal licence body: %w", err)
	}
	return &domain.LicencePayload{
		ID:           model.ID,
		LiteID:       model.LiteID,
		Reference:    model.Reference,
		Action:       domain.LicenceAction(model.Action),
		Licence:      licence,
		ReceivedAt:   model.ReceivedAt,
		IsProcessed:  model.IsProcessed,
		SkipProcess:  model.SkipProcess,
		OldLiteID:    model.OldLiteID,
		OldReference: model.OldReference,
	}, nil
}
