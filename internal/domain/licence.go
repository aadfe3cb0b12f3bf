package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LicenceAction string

const (
	ActionInsert  LicenceAction = "insert"
	ActionUpdate  LicenceAction = "update"
	ActionCancel  LicenceAction = "cancel"
	ActionReplace LicenceAction = "replace"
)

func (a LicenceAction) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionCancel, ActionReplace:
		return true
	}
	return false
}

// LicenceCategory is the coarse shape of a licence body. Standard licences
// carry named goods and an end user; open licences cover countries or a
// country group with a catch-all goods line.
type LicenceCategory string

const (
	CategoryStandard LicenceCategory = "standard"
	CategoryOpen     LicenceCategory = "open"
)

var categoryByType = map[string]LicenceCategory{
	"siel":     CategoryStandard,
	"sicl":     CategoryStandard,
	"sitl":     CategoryStandard,
	"sil":      CategoryStandard,
	"dfl":      CategoryStandard,
	"sanction": CategoryStandard,
	"oiel":     CategoryOpen,
	"oicl":     CategoryOpen,
	"ogel":     CategoryOpen,
	"ogcl":     CategoryOpen,
	"oil":      CategoryOpen,
}

// CategoryOf rejects licence types outside the closed set.
func CategoryOf(licenceType string) (LicenceCategory, error) {
	cat, ok := categoryByType[licenceType]
	if !ok {
		return "", ErrUnknownLicenceType
	}
	return cat, nil
}

type Country struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Address struct {
	Line1    string   `json:"line_1"`
	Line2    string   `json:"line_2,omitempty"`
	Line3    string   `json:"line_3,omitempty"`
	Line4    string   `json:"line_4,omitempty"`
	Line5    string   `json:"line_5,omitempty"`
	Postcode string   `json:"postcode,omitempty"`
	Country  *Country `json:"country,omitempty"`
}

// Lines returns the populated address lines in order.
func (a Address) Lines() []string {
	out := make([]string, 0, 5)
	for _, l := range []string{a.Line1, a.Line2, a.Line3, a.Line4, a.Line5} {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

type Organisation struct {
	Name       string  `json:"name"`
	EORINumber string  `json:"eori_number"`
	Address    Address `json:"address"`
}

type EndUser struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

type Good struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

// Licence is the body of a LITE licence operation as submitted over HTTP.
type Licence struct {
	ID           string        `json:"id"`
	Reference    string        `json:"reference"`
	Action       LicenceAction `json:"action"`
	Type         string        `json:"type"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	Organisation Organisation  `json:"organisation"`
	EndUser      *EndUser      `json:"end_user,omitempty"`
	Countries    []Country     `json:"countries,omitempty"`
	CountryGroup string        `json:"country_group,omitempty"`
	Goods        []Good        `json:"goods,omitempty"`
	OldID        string        `json:"old_id,omitempty"`
	OldReference string        `json:"old_reference,omitempty"`
}

func (l Licence) Category() (LicenceCategory, error) {
	return CategoryOf(l.Type)
}

// LicencePayload is the immutable record of one submitted licence operation.
// Only IsProcessed is ever mutated after creation.
type LicencePayload struct {
	ID           string
	LiteID       string
	Reference    string
	Action       LicenceAction
	Licence      Licence
	ReceivedAt   time.Time
	IsProcessed  bool
	SkipProcess  bool
	OldLiteID    string
	OldReference string
}
