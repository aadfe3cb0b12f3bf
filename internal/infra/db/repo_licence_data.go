package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chiefgate/internal/domain"
)

type LicenceDataRepository struct {
	db *gorm.DB
}

func NewLicenceDataRepository(db *gorm.DB) *LicenceDataRepository {
	return &LicenceDataRepository{db: db}
}

// NextRunNumber allocates the run number for the next outbound file. The
// last allocated row is locked so concurrent allocators serialize; the
// sequence wraps at the modulus.
func NextRunNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	var last []int
	err := tx.WithContext(ctx).Raw(
		"SELECT hmrc_run_number FROM licence_data ORDER BY id DESC LIMIT 1 FOR UPDATE",
	).Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if len(last) == 0 {
		return 1, nil
	}
	return domain.NextRunNumber(last[0]), nil
}

// CreateTx inserts inside a caller-held transaction, usually the same one
// that allocated the run number.
func (r *LicenceDataRepository) CreateTx(ctx context.Context, tx *gorm.DB, data domain.LicenceData) (domain.LicenceData, error) {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now().UTC()
	}
	model := licenceDataModelFromDomain(data)
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.LicenceData{}, domain.ErrAlreadyExists
		}
		return domain.LicenceData{}, err
	}
	data.ID = model.ID
	return data, nil
}

// FindByRunNumber locates the outbound batch a reply run number refers to.
func (r *LicenceDataRepository) FindByRunNumber(ctx context.Context, runNumber int) (*domain.LicenceData, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model LicenceDataModel
	err := r.db.WithContext(ctx).Where("hmrc_run_number = ?", runNumber).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	data := licenceDataFromModel(model)
	return &data, nil
}

func (r *LicenceDataRepository) FindByMailID(ctx context.Context, mailID int64) (*domain.LicenceData, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model LicenceDataModel
	err := r.db.WithContext(ctx).Where("mail_id = ?", mailID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	data := licenceDataFromModel(model)
	return &data, nil
}

func licenceDataModelFromDomain(data domain.LicenceData) LicenceDataModel {
	return LicenceDataModel{
		ID:              data.ID,
		MailID:          data.MailID,
		HMRCRunNumber:   data.HMRCRunNumber,
		SourceRunNumber: data.SourceRunNumber,
		Source:          string(data.Source),
		PayloadIDs:      joinRefs(data.PayloadIDs),
		LicenceRefs:     joinRefs(data.LicenceRefs),
		CreatedAt:       data.CreatedAt,
	}
}

func licenceDataFromModel(model LicenceDataModel) domain.LicenceData {
	return domain.LicenceData{
		ID:              model.ID,
		MailID:          model.MailID,
		HMRCRunNumber:   model.HMRCRunNumber,
		SourceRunNumber: model.SourceRunNumber,
		Source:          domain.Source(model.Source),
		PayloadIDs:      splitRefs(model.PayloadIDs),
		LicenceRefs:     splitRefs(model.LicenceRefs),
		CreatedAt:       model.CreatedAt,
	}
}
