package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is one scrape of the booking page. Any field except ScrapedAt may be
// missing when extraction failed.
type Snapshot struct {
	ID            uuid.UUID
	ScrapedAt     time.Time
	ItineraryName *string
	LeavingFrom   *string
	Onboard       *string
	SailStartDate *time.Time
	SailEndDate   *time.Time
	GuestSummary  *string
	RoomType      *string
	RoomSubtype   *string
	RoomCategory  *string
	CruiseFare    decimal.NullDecimal
	Discounts     decimal.NullDecimal
	Subtotal      decimal.NullDecimal
	TaxesAndFees  decimal.NullDecimal
	TotalPrice    decimal.NullDecimal
	CurrencyCode  *string
	URL           *string
	RawPayload    json.RawMessage
	CreatedAt     time.Time
}

// NotificationPreference is the single subscriber configured for price alerts.
type NotificationPreference struct {
	Email     string
	UpdatedAt time.Time
}
