package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chiefgate/internal/domain"
)

// MappingRepository stores the correlation tables between CHIEF licence
// references and LITE UUIDs. It satisfies the resolver side of the usage
// demultiplexer and the recorder side of the translator.
type MappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) UpsertLicenceIDMapping(ctx context.Context, mapping domain.LicenceIDMapping) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := LicenceIDMappingModel{Reference: mapping.Reference, LiteID: mapping.LiteID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoUpdates: clause.AssignmentColumns([]string{"lite_id"}),
		}).
		Create(&model).Error
}

func (r *MappingRepository) UpsertGoodIDMapping(ctx context.Context, mapping domain.GoodIDMapping) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := GoodIDMappingModel{
		Reference:  mapping.Reference,
		LineNumber: mapping.LineNumber,
		LiteID:     mapping.LiteID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}, {Name: "line_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"lite_id"}),
		}).
		Create(&model).Error
}

func (r *MappingRepository) UpsertTransactionMapping(ctx context.Context, mapping domain.TransactionMapping) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := TransactionMappingModel{
		Reference:        mapping.Reference,
		LineNumber:       mapping.LineNumber,
		UsageDataID:      mapping.UsageDataID,
		UsageTransaction: mapping.UsageTransaction,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}, {Name: "line_number"}, {Name: "usage_data_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"usage_transaction"}),
		}).
		Create(&model).Error
}

// LicenceID resolves a CHIEF reference to its LITE UUID. Lookup-style
// boolean result: unknown references are routine, not errors.
func (r *MappingRepository) LicenceID(reference string) (string, bool) {
	if r.db == nil {
		return "", false
	}
	var model LicenceIDMappingModel
	err := r.db.Where("reference = ?", reference).First(&model).Error
	if err != nil {
		return "", false
	}
	return model.LiteID, true
}

func (r *MappingRepository) GoodID(reference string, lineNumber int) (string, bool) {
	if r.db == nil {
		return "", false
	}
	var model GoodIDMappingModel
	err := r.db.Where("reference = ? AND line_number = ?", reference, lineNumber).First(&model).Error
	if err != nil {
		return "", false
	}
	return model.LiteID, true
}

func (r *MappingRepository) GetLicenceIDMapping(ctx context.Context, reference string) (*domain.LicenceIDMapping, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model LicenceIDMappingModel
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.LicenceIDMapping{Reference: model.Reference, LiteID: model.LiteID}, nil
}
