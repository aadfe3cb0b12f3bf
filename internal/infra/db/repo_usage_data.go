package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chiefgate/internal/domain"
)

type UsageDataRepository struct {
	db *gorm.DB
}

func NewUsageDataRepository(db *gorm.DB) *UsageDataRepository {
	return &UsageDataRepository{db: db}
}

func (r *UsageDataRepository) Create(ctx context.Context, data domain.UsageData) (domain.UsageData, error) {
	if r.db == nil {
		return domain.UsageData{}, errDBUnavailable
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now().UTC()
	}
	model := usageDataModelFromDomain(data)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.UsageData{}, err
	}
	data.ID = model.ID
	return data, nil
}

func (r *UsageDataRepository) Get(ctx context.Context, id int64) (*domain.UsageData, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model UsageDataModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	data := usageDataFromModel(model)
	return &data, nil
}

func (r *UsageDataRepository) FindByMailID(ctx context.Context, mailID int64) (*domain.UsageData, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model UsageDataModel
	err := r.db.WithContext(ctx).Where("mail_id = ?", mailID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	data := usageDataFromModel(model)
	return &data, nil
}

func (r *UsageDataRepository) Update(ctx context.Context, data domain.UsageData) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := usageDataModelFromDomain(data)
	return r.db.WithContext(ctx).Save(&model).Error
}

// PendingLiteDelivery lists usage files whose LITE half has not been
// accepted yet, oldest first.
func (r *UsageDataRepository) PendingLiteDelivery(ctx context.Context) ([]domain.UsageData, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []UsageDataModel
	err := r.db.WithContext(ctx).
		Where("has_lite_data = ? AND lite_sent_at IS NULL", true).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.UsageData, 0, len(models))
	for _, model := range models {
		out = append(out, usageDataFromModel(model))
	}
	return out, nil
}

// RecordLiteDelivery stores LITE's verdict on a usage payload.
func (r *UsageDataRepository) RecordLiteDelivery(ctx context.Context, id int64, response string, accepted, rejected []string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&UsageDataModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"lite_response":          response,
			"lite_accepted_licences": joinRefs(accepted),
			"lite_rejected_licences": joinRefs(rejected),
			"lite_sent_at":           now,
		}).Error
}

func usageDataModelFromDomain(data domain.UsageData) UsageDataModel {
	return UsageDataModel{
		ID:                   data.ID,
		MailID:               data.MailID,
		HMRCRunNumber:        data.HMRCRunNumber,
		SpireRunNumber:       data.SpireRunNumber,
		LicenceRefs:          joinRefs(data.LicenceRefs),
		HasSpireData:         data.HasSpireData,
		HasLiteData:          data.HasLiteData,
		SpireData:            data.SpireData,
		LitePayload:          data.LitePayload,
		LiteResponse:         data.LiteResponse,
		LiteAcceptedLicences: joinRefs(data.LiteAcceptedLicences),
		LiteRejectedLicences: joinRefs(data.LiteRejectedLicences),
		LiteSentAt:           data.LiteSentAt,
		CreatedAt:            data.CreatedAt,
	}
}

func usageDataFromModel(model UsageDataModel) domain.UsageData {
	return domain.UsageData{
		ID:                   model.ID,
		MailID:               model.MailID,
		HMRCRunNumber:        model.HMRCRunNumber,
		SpireRunNumber:       model.SpireRunNumber,
		LicenceRefs:          splitRefs(model.LicenceRefs),
		HasSpireData:         model.HasSpireData,
		HasLiteData:          model.HasLiteData,
		SpireData:            model.SpireData,
		LitePayload:          model.LitePayload,
		LiteResponse:         model.LiteResponse,
		LiteAcceptedLicences: splitRefs(model.LiteAcceptedLicences),
		LiteRejectedLicences: splitRefs(model.LiteRejectedLicences),
		LiteSentAt:           model.LiteSentAt,
		CreatedAt:            model.CreatedAt,
	}
}
