package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"cruise-price-tracker/internal/service"
	"cruise-price-tracker/internal/storage"
)

const dateLayout = "2006-01-02"

// snapshotResponse is the wire form of a snapshot. Money is a decimal string.
type snapshotResponse struct {
	ID            string          `json:"id"`
	ScrapedAt     time.Time       `json:"scraped_at"`
	ItineraryName *string         `json:"itinerary_name"`
	LeavingFrom   *string         `json:"leaving_from"`
	Onboard       *string         `json:"onboard"`
	SailStartDate *string         `json:"sail_start_date"`
	SailEndDate   *string         `json:"sail_end_date"`
	GuestSummary  *string         `json:"guest_summary"`
	RoomType      *string         `json:"room_type"`
	RoomSubtype   *string         `json:"room_subtype"`
	RoomCategory  *string         `json:"room_category"`
	CruiseFare    *string         `json:"cruise_fare"`
	Discounts     *string         `json:"discounts"`
	Subtotal      *string         `json:"subtotal"`
	TaxesAndFees  *string         `json:"taxes_and_fees"`
	TotalPrice    *string         `json:"total_price"`
	CurrencyCode  *string         `json:"currency_code"`
	URL           *string         `json:"url"`
	RawPayload    json.RawMessage `json:"raw_payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

type chartPointResponse struct {
	ScrapedAt    time.Time `json:"scraped_at"`
	CruiseFare   *string   `json:"cruise_fare"`
	Discounts    *string   `json:"discounts"`
	Subtotal     *string   `json:"subtotal"`
	TaxesAndFees *string   `json:"taxes_and_fees"`
	TotalPrice   *string   `json:"total_price"`
}

type healthResponse struct {
	Status         string     `json:"status"`
	LatestSnapshot *time.Time `json:"latest_snapshot"`
	HasSnapshot    bool       `json:"has_snapshot"`
}

type notificationResponse struct {
	Email *string `json:"email"`
}

type notificationRequest struct {
	Email string `json:"email"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func toSnapshotResponse(s storage.Snapshot) snapshotResponse {
	payload := s.RawPayload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return snapshotResponse{
		ID:            s.ID.String(),
		ScrapedAt:     s.ScrapedAt,
		ItineraryName: s.ItineraryName,
		LeavingFrom:   s.LeavingFrom,
		Onboard:       s.Onboard,
		SailStartDate: dateString(s.SailStartDate),
		SailEndDate:   dateString(s.SailEndDate),
		GuestSummary:  s.GuestSummary,
		RoomType:      s.RoomType,
		RoomSubtype:   s.RoomSubtype,
		RoomCategory:  s.RoomCategory,
		CruiseFare:    moneyString(s.CruiseFare),
		Discounts:     moneyString(s.Discounts),
		Subtotal:      moneyString(s.Subtotal),
		TaxesAndFees:  moneyString(s.TaxesAndFees),
		TotalPrice:    moneyString(s.TotalPrice),
		CurrencyCode:  s.CurrencyCode,
		URL:           s.URL,
		RawPayload:    payload,
		CreatedAt:     s.CreatedAt,
	}
}

func toChartPointResponse(p service.ChartPoint) chartPointResponse {
	return chartPointResponse{
		ScrapedAt:    p.ScrapedAt,
		CruiseFare:   moneyString(p.CruiseFare),
		Discounts:    moneyString(p.Discounts),
		Subtotal:     moneyString(p.Subtotal),
		TaxesAndFees: moneyString(p.TaxesAndFees),
		TotalPrice:   moneyString(p.TotalPrice),
	}
}

func moneyString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
