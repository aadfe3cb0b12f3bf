package db

import "time"

type MailModel struct {
	ID          int64  `gorm:"primaryKey"`
	ExtractType string `gorm:"index;not null"`
	Status      string `gorm:"index;not null"`

	EDIFilename string `gorm:"not null"`
	EDIData     string `gorm:"type:text;not null"`

	ResponseFilename string
	ResponseData     string `gorm:"type:text"`
	ResponseSubject  string

	CurrentlyProcessedBy  string
	CurrentlyProcessingAt *time.Time

	RawData string `gorm:"type:text"`

	CreatedAt    time.Time `gorm:"not null"`
	SentAt       *time.Time
	ResponseDate *time.Time
}

type LicenceDataModel struct {
	ID              int64  `gorm:"primaryKey"`
	MailID          int64  `gorm:"index;not null"`
	HMRCRunNumber   int    `gorm:"uniqueIndex;not null"`
	SourceRunNumber *int
	Source          string `gorm:"not null"`
	// PayloadIDs and LicenceRefs are newline-joined; references never
	// contain newlines.
	PayloadIDs  string    `gorm:"type:text"`
	LicenceRefs string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

type UsageDataModel struct {
	ID             int64 `gorm:"primaryKey"`
	MailID         int64 `gorm:"index;not null"`
	HMRCRunNumber  int   `gorm:"index;not null"`
	SpireRunNumber int
	LicenceRefs    string `gorm:"type:text"`
	HasSpireData   bool   `gorm:"not null"`
	HasLiteData    bool   `gorm:"not null"`

	SpireData string `gorm:"type:text"`

	LitePayload          string `gorm:"type:text"`
	LiteResponse         string `gorm:"type:text"`
	LiteAcceptedLicences string `gorm:"type:text"`
	LiteRejectedLicences string `gorm:"type:text"`
	LiteSentAt           *time.Time

	CreatedAt time.Time `gorm:"not null"`
}

type LicencePayloadModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	LiteID       string `gorm:"index;not null"`
	Reference    string `gorm:"uniqueIndex;not null"`
	Action       string `gorm:"not null"`
	Data         []byte `gorm:"type:jsonb;not null"`
	ReceivedAt   time.Time `gorm:"index;not null"`
	IsProcessed  bool      `gorm:"index;not null"`
	SkipProcess  bool      `gorm:"not null"`
	OldLiteID    string
	OldReference string
}

type LicenceIDMappingModel struct {
	Reference string `gorm:"primaryKey"`
	LiteID    string `gorm:"index;not null"`
}

type GoodIDMappingModel struct {
	Reference  string `gorm:"primaryKey"`
	LineNumber int    `gorm:"primaryKey"`
	LiteID     string `gorm:"not null"`
}

type TransactionMappingModel struct {
	ID               int64  `gorm:"primaryKey"`
	Reference        string `gorm:"uniqueIndex:idx_tx_mapping;not null"`
	LineNumber       int    `gorm:"uniqueIndex:idx_tx_mapping;not null"`
	UsageDataID      int64  `gorm:"uniqueIndex:idx_tx_mapping;not null"`
	UsageTransaction string `gorm:"not null"`
}

// MailReadStatusModel records, per mailbox, which messages have been
// consumed or quarantined. The unique index makes re-reads idempotent.
type MailReadStatusModel struct {
	ID        int64     `gorm:"primaryKey"`
	Mailbox   string    `gorm:"uniqueIndex:idx_mailbox_message;not null"`
	MessageID string    `gorm:"uniqueIndex:idx_mailbox_message;not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (MailModel) TableName() string            { return "mail" }
func (LicenceDataModel) TableName() string     { return "licence_data" }
func (UsageDataModel) TableName() string       { return "usage_data" }
func (LicencePayloadModel) TableName() string  { return "licence_payloads" }
func (LicenceIDMappingModel) TableName() string {
	return "licence_id_mappings"
}
func (GoodIDMappingModel) TableName() string      { return "good_id_mappings" }
func (TransactionMappingModel) TableName() string { return "transaction_mappings" }
func (MailReadStatusModel) TableName() string     { return "mail_read_statuses" }
