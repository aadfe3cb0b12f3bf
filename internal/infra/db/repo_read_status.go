package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chiefgate/internal/domain"
)

type ReadStatusRepository struct {
	db *gorm.DB
}

func NewReadStatusRepository(db *gorm.DB) *ReadStatusRepository {
	return &ReadStatusRepository{db: db}
}

// Status reports how a message was previously handled, empty string when
// the message has never been seen.
func (r *ReadStatusRepository) Status(ctx context.Context, mailbox, messageID string) (domain.ReadStatus, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var model MailReadStatusModel
	err := r.db.WithContext(ctx).
		Where("mailbox = ? AND message_id = ?", mailbox, messageID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return domain.ReadStatus(model.Status), nil
}

// Mark records the outcome for a message, overwriting any earlier status so
// an UNREAD peek can be promoted to READ or UNPROCESSABLE.
func (r *ReadStatusRepository) Mark(ctx context.Context, mailbox, messageID string, status domain.ReadStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := MailReadStatusModel{
		Mailbox:   mailbox,
		MessageID: messageID,
		Status:    string(status),
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mailbox"}, {Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status"}),
		}).
		Create(&model).Error
}
