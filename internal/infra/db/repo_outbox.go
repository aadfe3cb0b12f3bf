package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"chiefgate/internal/domain"
)

// OutboxRepository orchestrates the transactional enqueue of an outbound
// licenceData file. A send failure rolls the whole batch back so the next
// tick starts from scratch; the run number is only consumed on commit.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) EnqueueLicenceData(ctx context.Context, batch domain.OutboundBatch) (domain.Mail, domain.LicenceData, error) {
	if r.db == nil {
		return domain.Mail{}, domain.LicenceData{}, errDBUnavailable
	}
	var (
		outMail domain.Mail
		outData domain.LicenceData
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenSlot(ctx, tx); err != nil {
			return err
		}
		runNumber, err := NextRunNumber(ctx, tx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		filename, data, err := batch.Build(runNumber, now)
		if err != nil {
			return err
		}

		mailModel := mailModelFromDomain(domain.Mail{
			ExtractType: domain.ExtractLicenceData,
			Status:      domain.MailReplyPending,
			EDIFilename: filename,
			EDIData:     data,
			RawData:     batch.RawData,
			CreatedAt:   now,
			SentAt:      &now,
		})
		if err := tx.Create(&mailModel).Error; err != nil {
			return err
		}

		dataModel := licenceDataModelFromDomain(domain.LicenceData{
			MailID:          mailModel.ID,
			HMRCRunNumber:   runNumber,
			SourceRunNumber: batch.SourceRunNumber,
			Source:          batch.Source,
			PayloadIDs:      batch.PayloadIDs,
			LicenceRefs:     batch.LicenceRefs,
			CreatedAt:       now,
		})
		if err := tx.Create(&dataModel).Error; err != nil {
			return err
		}

		if len(batch.PayloadIDs) > 0 {
			if err := tx.Model(&LicencePayloadModel{}).
				Where("id IN ?", batch.PayloadIDs).
				Update("is_processed", true).Error; err != nil {
				return err
			}
		}

		// The send happens inside the transaction on purpose: a failed
		// transmission must leave no mail row and no consumed run number.
		if err := batch.Send(filename, data); err != nil {
			return err
		}

		outMail = mailFromModel(mailModel)
		outData = licenceDataFromModel(dataModel)
		return nil
	})
	if err != nil {
		return domain.Mail{}, domain.LicenceData{}, err
	}
	return outMail, outData, nil
}
