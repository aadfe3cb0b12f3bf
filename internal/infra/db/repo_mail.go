package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chiefgate/internal/domain"
)

type MailRepository struct {
	db *gorm.DB
}

func NewMailRepository(db *gorm.DB) *MailRepository {
	return &MailRepository{db: db}
}

func (r *MailRepository) Create(ctx context.Context, mail domain.Mail) (domain.Mail, error) {
	if r.db == nil {
		return domain.Mail{}, errDBUnavailable
	}
	if mail.CreatedAt.IsZero() {
		mail.CreatedAt = time.Now().UTC()
	}
	model := mailModelFromDomain(mail)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Mail{}, err
	}
	mail.ID = model.ID
	return mail, nil
}

func (r *MailRepository) Get(ctx context.Context, id int64) (*domain.Mail, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model MailModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	mail := mailFromModel(model)
	return &mail, nil
}

// FindOpen returns the single mail whose conversation is still in flight,
// nil when the slot is free. At most one such row ever exists.
func (r *MailRepository) FindOpen(ctx context.Context) (*domain.Mail, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model MailModel
	err := r.db.WithContext(ctx).
		Where("status <> ?", string(domain.MailReplySent)).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	mail := mailFromModel(model)
	return &mail, nil
}

// CreateInSlot inserts a mail only while no other conversation is open.
// The existence check and the insert share one transaction with the open
// rows locked, so two concurrent workers cannot both enqueue.
func (r *MailRepository) CreateInSlot(ctx context.Context, mail domain.Mail) (domain.Mail, error) {
	if r.db == nil {
		return domain.Mail{}, errDBUnavailable
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenSlot(ctx, tx); err != nil {
			return err
		}
		if mail.CreatedAt.IsZero() {
			mail.CreatedAt = time.Now().UTC()
		}
		model := mailModelFromDomain(mail)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		mail.ID = model.ID
		return nil
	})
	if err != nil {
		return domain.Mail{}, err
	}
	return mail, nil
}

// lockOpenSlot locks any open mail rows and fails when one exists.
func lockOpenSlot(ctx context.Context, tx *gorm.DB) error {
	var open []int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT id FROM mail WHERE status <> ? FOR UPDATE",
		string(domain.MailReplySent),
	).Scan(&open).Error; err != nil {
		return err
	}
	if len(open) > 0 {
		return domain.ErrSlotOccupied
	}
	return nil
}

// AcquireLease CAS-writes the worker id and timestamp onto a mail. A live
// lease held by another worker wins; a lease older than lockInterval is
// stale and taken over.
func (r *MailRepository) AcquireLease(ctx context.Context, mailID int64, workerID string, lockInterval time.Duration) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	stale := now.Add(-lockInterval)
	res := r.db.WithContext(ctx).Exec(
		`UPDATE mail
		 SET currently_processed_by = ?, currently_processing_at = ?
		 WHERE id = ?
		   AND (currently_processed_by = ''
		        OR currently_processed_by = ?
		        OR currently_processing_at IS NULL
		        OR currently_processing_at < ?)`,
		workerID, now, mailID, workerID, stale,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrLeaseHeld
	}
	return nil
}

func (r *MailRepository) ReleaseLease(ctx context.Context, mailID int64, workerID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Exec(
		"UPDATE mail SET currently_processed_by = '', currently_processing_at = NULL WHERE id = ? AND currently_processed_by = ?",
		mailID, workerID,
	).Error
}

// MarkSent moves a transmitted mail into reply_pending.
func (r *MailRepository) MarkSent(ctx context.Context, mailID int64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&MailModel{}).
		Where("id = ?", mailID).
		Updates(map[string]any{
			"status":  string(domain.MailReplyPending),
			"sent_at": now,
		}).Error
}

// AttachResponse records the inbound reply against its mail and moves the
// conversation to reply_received.
func (r *MailRepository) AttachResponse(ctx context.Context, mailID int64, filename, data, subject string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&MailModel{}).
		Where("id = ?", mailID).
		Updates(map[string]any{
			"status":            string(domain.MailReplyReceived),
			"response_filename": filename,
			"response_data":     data,
			"response_subject":  subject,
			"response_date":     now,
		}).Error
}

// MarkReplySent closes the conversation and frees the slot.
func (r *MailRepository) MarkReplySent(ctx context.Context, mailID int64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Model(&MailModel{}).
		Where("id = ?", mailID).
		Updates(map[string]any{
			"status":                  string(domain.MailReplySent),
			"currently_processed_by":  "",
			"currently_processing_at": nil,
		}).Error
}

// CountStuckPending feeds the health surface: reply_pending mails older
// than the awaiting-reply threshold.
func (r *MailRepository) CountStuckPending(ctx context.Context, age time.Duration) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var n int64
	err := r.db.WithContext(ctx).
		Model(&MailModel{}).
		Where("status = ? AND sent_at < ?", string(domain.MailReplyPending), time.Now().UTC().Add(-age)).
		Count(&n).Error
	return n, err
}

func mailModelFromDomain(mail domain.Mail) MailModel {
	return MailModel{
		ID:                    mail.ID,
		ExtractType:           string(mail.ExtractType),
		Status:                string(mail.Status),
		EDIFilename:           mail.EDIFilename,
		EDIData:               mail.EDIData,
		ResponseFilename:      mail.ResponseFilename,
		ResponseData:          mail.ResponseData,
		ResponseSubject:       mail.ResponseSubject,
		CurrentlyProcessedBy:  mail.CurrentlyProcessedBy,
		CurrentlyProcessingAt: mail.CurrentlyProcessingAt,
		RawData:               mail.RawData,
		CreatedAt:             mail.CreatedAt,
		SentAt:                mail.SentAt,
		ResponseDate:          mail.ResponseDate,
	}
}

func mailFromModel(model MailModel) domain.Mail {
	return domain.Mail{
		ID:                    model.ID,
		ExtractType:           domain.ExtractType(model.ExtractType),
		Status:                domain.MailStatus(model.Status),
		EDIFilename:           model.EDIFilename,
		EDIData:               model.EDIData,
		ResponseFilename:      model.ResponseFilename,
		ResponseData:          model.ResponseData,
		ResponseSubject:       model.ResponseSubject,
		CurrentlyProcessedBy:  model.CurrentlyProcessedBy,
		CurrentlyProcessingAt: model.CurrentlyProcessingAt,
		RawData:               model.RawData,
		CreatedAt:             model.CreatedAt,
		SentAt:                model.SentAt,
		ResponseDate:          model.ResponseDate,
	}
}
