package domain

import "time"

type ExtractType string

const (
	ExtractLicenceData  ExtractType = "licence_data"
	ExtractLicenceReply ExtractType = "licence_reply"
	ExtractUsageData    ExtractType = "usage_data"
	ExtractUsageReply   ExtractType = "usage_reply"
)

type MailStatus string

const (
	MailPending       MailStatus = "pending"
	MailReplyPending  MailStatus = "reply_pending"
	MailReplyReceived MailStatus = "reply_received"
	MailReplySent     MailStatus = "reply_sent"
)

type Source string

const (
	SourceLITE  Source = "LITE"
	SourceSPIRE Source = "SPIRE"
	SourceHMRC  Source = "HMRC"
)

// Mail is the durable unit of conversation with HMRC or SPIRE. One row per
// sent or received message; the lease fields coordinate concurrent workers.
type Mail struct {
	ID          int64
	ExtractType ExtractType
	Status      MailStatus

	EDIFilename string
	EDIData     string

	ResponseFilename string
	ResponseData     string
	ResponseSubject  string

	CurrentlyProcessedBy  string
	CurrentlyProcessingAt *time.Time

	// RawData keeps the inbound mail source verbatim for audit.
	RawData string

	CreatedAt    time.Time
	SentAt       *time.Time
	ResponseDate *time.Time
}

// LicenceData ties an outbound licence batch to its mail, run numbers and
// the payloads it carries.
type LicenceData struct {
	ID              int64
	MailID          int64
	HMRCRunNumber   int
	SourceRunNumber *int
	Source          Source
	PayloadIDs      []string
	LicenceRefs     []string
	CreatedAt       time.Time
}

// UsageData records one inbound usage mail and the progress of its LITE half.
type UsageData struct {
	ID            int64
	MailID        int64
	HMRCRunNumber int
	SpireRunNumber int
	LicenceRefs   []string
	HasSpireData  bool
	HasLiteData   bool

	// SpireData is the re-emitted file containing only SPIRE transactions.
	SpireData string

	LitePayload          string
	LiteResponse         string
	LiteAcceptedLicences []string
	LiteRejectedLicences []string
	LiteSentAt           *time.Time

	CreatedAt time.Time
}

// Mapping rows correlate CHIEF identifiers with LITE UUIDs.
type LicenceIDMapping struct {
	Reference string
	LiteID    string
}

type GoodIDMapping struct {
	Reference  string
	LineNumber int
	LiteID     string
}

type TransactionMapping struct {
	Reference        string
	LineNumber       int
	UsageDataID      int64
	UsageTransaction string
}

// OutboundBatch describes one licenceData file to enqueue and transmit
// atomically: slot check, run-number allocation, mail and licence_data
// rows, payload bookkeeping and the SMTP send all commit or roll back
// together. Build renders the file for the allocated run number; Send
// transmits it.
type OutboundBatch struct {
	Source          Source
	SourceRunNumber *int
	PayloadIDs      []string
	LicenceRefs     []string
	RawData         string

	Build func(runNumber int, now time.Time) (filename, data string, err error)
	Send  func(filename, data string) error
}

type ReadStatus string

const (
	ReadStatusUnread        ReadStatus = "UNREAD"
	ReadStatusRead          ReadStatus = "READ"
	ReadStatusUnprocessable ReadStatus = "UNPROCESSABLE"
)
