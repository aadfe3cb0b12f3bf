package usecase

import (
	"context"
	"time"

	"chiefgate/internal/chief"
	"chiefgate/internal/domain"
	"chiefgate/internal/infra/liteapi"
	"chiefgate/internal/infra/mailbox"
)

type LicencePayloadRepository interface {
	Create(ctx context.Context, payload domain.LicencePayload) (domain.LicencePayload, error)
	GetByReference(ctx context.Context, reference string) (*domain.LicencePayload, error)
	FindUnprocessed(ctx context.Context) ([]domain.LicencePayload, error)
	PreviousPayload(ctx context.Context, reference string) (*domain.LicencePayload, error)
	CountUnprocessedOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type MailRepository interface {
	Get(ctx context.Context, id int64) (*domain.Mail, error)
	FindOpen(ctx context.Context) (*domain.Mail, error)
	CreateInSlot(ctx context.Context, mail domain.Mail) (domain.Mail, error)
	AcquireLease(ctx context.Context, mailID int64, workerID string, lockInterval time.Duration) error
	ReleaseLease(ctx context.Context, mailID int64, workerID string) error
	MarkSent(ctx context.Context, mailID int64) error
	AttachResponse(ctx context.Context, mailID int64, filename, data, subject string) error
	MarkReplySent(ctx context.Context, mailID int64) error
	CountStuckPending(ctx context.Context, age time.Duration) (int64, error)
}

type OutboxRepository interface {
	EnqueueLicenceData(ctx context.Context, batch domain.OutboundBatch) (domain.Mail, domain.LicenceData, error)
}

type LicenceDataRepository interface {
	FindByRunNumber(ctx context.Context, runNumber int) (*domain.LicenceData, error)
	FindByMailID(ctx context.Context, mailID int64) (*domain.LicenceData, error)
}

type UsageDataRepository interface {
	Create(ctx context.Context, data domain.UsageData) (domain.UsageData, error)
	Get(ctx context.Context, id int64) (*domain.UsageData, error)
	FindByMailID(ctx context.Context, mailID int64) (*domain.UsageData, error)
	Update(ctx context.Context, data domain.UsageData) error
	PendingLiteDelivery(ctx context.Context) ([]domain.UsageData, error)
	RecordLiteDelivery(ctx context.Context, id int64, response string, accepted, rejected []string) error
}

type MappingRepository interface {
	chief.Resolver
	UpsertLicenceIDMapping(ctx context.Context, mapping domain.LicenceIDMapping) error
	UpsertGoodIDMapping(ctx context.Context, mapping domain.GoodIDMapping) error
	UpsertTransactionMapping(ctx context.Context, mapping domain.TransactionMapping) error
}

type ReadStatusRepository interface {
	Status(ctx context.Context, mailbox, messageID string) (domain.ReadStatus, error)
	Mark(ctx context.Context, mailbox, messageID string, status domain.ReadStatus) error
}

type MailSender interface {
	SendPayload(ctx context.Context, to, filename, data string) error
	SendNotification(ctx context.Context, to []string, subject, body string) error
}

type LiteClient interface {
	SendUsage(ctx context.Context, usageDataID string, payload *chief.LiteUsagePayload) (*liteapi.Delivery, error)
}

// Inbox is one POP3 account to drain.
type Inbox interface {
	Mailbox() string
	Whitelisted(sender string) bool
	Connect() (InboxSession, error)
}

type InboxSession interface {
	List() ([]int, error)
	Peek(id int) (mailbox.Header, error)
	Retrieve(id int) ([]byte, error)
	Quit() error
}
