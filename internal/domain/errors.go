package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("invalid licence submission")
	ErrAlreadyExists      = errors.New("already exists")
	ErrEdifactValidation  = errors.New("edifact validation failed")
	ErrPreviousPayload    = errors.New("no previous payload for replace")
	ErrUnknownLicenceType = errors.New("unknown licence type")
	ErrUnknownUnit        = errors.New("unknown quantity unit")
	ErrSlotOccupied       = errors.New("an envelope is already in flight")
	ErrLeaseHeld          = errors.New("envelope lease held by another worker")
	ErrSenderRejected     = errors.New("sender not whitelisted")
	ErrNoAttachment       = errors.New("mail carries no usable attachment")
	ErrUnknownExtract     = errors.New("unknown extract type")
	ErrReplyUnmatched     = errors.New("reply matches no outstanding mail")
	ErrDeliveryFailed     = errors.New("outbound delivery failed")
)
