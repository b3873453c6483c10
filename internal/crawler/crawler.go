// Package crawler acquires booking page snapshots.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cruise-price-tracker/internal/logging"
	"cruise-price-tracker/internal/money"
	"cruise-price-tracker/internal/storage"
)

// Acquirer produces one unsaved snapshot per call.
type Acquirer interface {
	Acquire(ctx context.Context) (storage.Snapshot, error)
}

// Field keys double as the raw_text keys of the stored payload.
const (
	FieldItineraryName = "itinerary_name"
	FieldLeavingFrom   = "leaving_from"
	FieldOnboard       = "onboard"
	FieldSailStart     = "sail_start_date"
	FieldSailEnd       = "sail_end_date"
	FieldGuestSummary  = "guest_summary"
	FieldRoomType      = "room_type"
	FieldRoomSubtype   = "room_subtype"
	FieldRoomCategory  = "room_category"
	FieldCruiseFare    = "cruise_fare"
	FieldDiscounts     = "discounts"
	FieldSubtotal      = "subtotal"
	FieldTaxesAndFees  = "taxes_and_fees"
	FieldTotalPrice    = "total_price"
)

type selector struct {
	field string
	query string
}

var selectors = []selector{
	{FieldItineraryName, "[data-testid=itinerary-summary-drawer-name]"},
	{FieldLeavingFrom, "[data-testid=itinerary-summary-port]"},
	{FieldOnboard, "[data-testid=itinerary-summary-ship]"},
	{FieldSailStart, "[data-testid=itinerary-summary-start-date]"},
	{FieldSailEnd, "[data-testid=itinerary-summary-end-date]"},
	{FieldGuestSummary, "[data-testid=navigation-card-rooms-and-guests-link]"},
	{FieldRoomType, "[data-testid=navigation-card-room-type-link]"},
	{FieldRoomSubtype, "[data-testid=navigation-card-room-subtype-link]"},
	{FieldRoomCategory, "[data-testid=room-category]"},
	{FieldCruiseFare, "[data-testid=pricing-cruise-fare]"},
	{FieldDiscounts, "[data-testid=pricing-discount]"},
	{FieldSubtotal, "[data-testid=pricing-subtotal]"},
	{FieldTaxesAndFees, "[data-testid=pricing-taxes]"},
	{FieldTotalPrice, "[data-testid=pricing-total]"},
}

var dateLayouts = []string{
	"Mon, Jan 2, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
	"Mon Jan 2 2006",
	"2 Jan 2006",
}

var currencyPattern = regexp.MustCompile(`[A-Z]{3}`)

// DefaultCurrency is assumed when a total is present without an explicit code.
const DefaultCurrency = "USD"

// Options parameterise the HTTP crawler.
type Options struct {
	TargetURL string
	Timeout   time.Duration
	UserAgent string
	Locale    string
}

// Crawler fetches the booking page over HTTP and extracts the summary fields. It only
// sees server-rendered markup; a page that fills its prices in client-side yields null
// fields and needs a browser-backed Acquirer instead.
type Crawler struct {
	opts   Options
	client *resty.Client
	logger zerolog.Logger
	now    func() time.Time
}

// New builds a crawler with a bounded request timeout.
func New(opts Options, logger zerolog.Logger) *Crawler {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	locale := strings.TrimSpace(opts.Locale)
	if locale == "" {
		locale = "en-US"
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Language", acceptLanguage(locale))
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		client.SetHeader("User-Agent", ua)
	}

	return &Crawler{
		opts:   opts,
		client: client,
		logger: logging.Component(logger, "crawler"),
		now:    time.Now,
	}
}

// Acquire performs a single crawl. Transport failures and non-2xx answers return an error.
func (c *Crawler) Acquire(ctx context.Context) (storage.Snapshot, error) {
	if c.opts.TargetURL == "" {
		return storage.Snapshot{}, errors.New("crawler target url not configured")
	}

	scrapedAt := c.now().UTC()
	c.logger.Info().Str("url", c.opts.TargetURL).Msg("starting crawl")

	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.opts.TargetURL)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("fetch booking page: %w", err)
	}
	if resp.IsError() {
		return storage.Snapshot{}, fmt.Errorf("fetch booking page: unexpected status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("parse booking page: %w", err)
	}

	snapshot, err := c.extract(doc, scrapedAt)
	if err != nil {
		return storage.Snapshot{}, err
	}

	c.logger.Info().
		Time("scraped_at", scrapedAt).
		Str("total_price", money.FormatNull(snapshot.TotalPrice, money.DefaultSymbol)).
		Msg("finished crawl")
	return snapshot, nil
}

func (c *Crawler) extract(doc *goquery.Document, scrapedAt time.Time) (storage.Snapshot, error) {
	raw := make(map[string]*string, len(selectors))
	for _, sel := range selectors {
		raw[sel.field] = c.text(doc, sel)
	}

	payload, err := json.Marshal(map[string]any{"raw_text": raw})
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("encode raw payload: %w", err)
	}

	url := c.opts.TargetURL
	return storage.Snapshot{
		ScrapedAt:     scrapedAt,
		ItineraryName: raw[FieldItineraryName],
		LeavingFrom:   raw[FieldLeavingFrom],
		Onboard:       raw[FieldOnboard],
		SailStartDate: c.date(raw[FieldSailStart]),
		SailEndDate:   c.date(raw[FieldSailEnd]),
		GuestSummary:  raw[FieldGuestSummary],
		RoomType:      raw[FieldRoomType],
		RoomSubtype:   raw[FieldRoomSubtype],
		RoomCategory:  raw[FieldRoomCategory],
		CruiseFare:    c.amount(raw[FieldCruiseFare]),
		Discounts:     c.amount(raw[FieldDiscounts]),
		Subtotal:      c.amount(raw[FieldSubtotal]),
		TaxesAndFees:  c.amount(raw[FieldTaxesAndFees]),
		TotalPrice:    c.amount(raw[FieldTotalPrice]),
		CurrencyCode:  Currency(raw[FieldTotalPrice]),
		URL:           &url,
		RawPayload:    payload,
	}, nil
}

func (c *Crawler) text(doc *goquery.Document, sel selector) *string {
	found := doc.Find(sel.query).First()
	if found.Length() == 0 {
		c.logger.Warn().Str("selector", sel.query).Msg("selector not found")
		return nil
	}
	value := collapse(found.Text())
	if value == "" {
		return nil
	}
	return &value
}

func (c *Crawler) date(value *string) *time.Time {
	if value == nil {
		return nil
	}
	parsed, ok := ParseDate(*value)
	if !ok {
		c.logger.Warn().Str("value", *value).Msg("unable to parse date")
		return nil
	}
	return &parsed
}

func (c *Crawler) amount(value *string) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	d, err := money.Parse(*value)
	if err != nil {
		c.logger.Warn().Str("value", *value).Msg("unable to parse money value")
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseDate tries each known layout and returns the calendar date in UTC.
func ParseDate(value string) (time.Time, bool) {
	value = collapse(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Currency returns the first three-letter code in the total text, DefaultCurrency when
// the text has none, or nil when there is no text.
func Currency(total *string) *string {
	if total == nil || strings.TrimSpace(*total) == "" {
		return nil
	}
	code := DefaultCurrency
	if match := currencyPattern.FindString(strings.ToUpper(*total)); match != "" {
		code = match
	}
	return &code
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func acceptLanguage(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	if lang == locale {
		return locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", locale, lang)
}

var _ Acquirer = (*Crawler)(nil)
