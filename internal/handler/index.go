package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"cruise-price-tracker/internal/money"
	"cruise-price-tracker/internal/storage"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexView struct {
	AppName         string
	IntervalMinutes int
	Latest          *latestView
}

type latestView struct {
	ScrapedAt  string
	Itinerary  string
	Sailing    string
	Room       string
	TotalPrice string
}

// Index renders the human-readable status page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	latest, err := h.svc.Latest(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("status page rendered without latest snapshot")
		latest = nil
	}

	view := indexView{
		AppName:         h.appName,
		IntervalMinutes: int(h.interval / time.Minute),
	}
	if latest != nil {
		view.Latest = newLatestView(*latest)
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, view); err != nil {
		h.internalError(w, "render index failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func newLatestView(s storage.Snapshot) *latestView {
	symbol := money.DefaultSymbol
	if s.CurrencyCode != nil {
		symbol = money.Symbol(*s.CurrencyCode)
	}
	return &latestView{
		ScrapedAt:  s.ScrapedAt.UTC().Format(time.RFC3339),
		Itinerary:  deref(s.ItineraryName),
		Sailing:    joinNonEmpty(" to ", deref(dateString(s.SailStartDate)), deref(dateString(s.SailEndDate))),
		Room:       joinNonEmpty(" / ", deref(s.RoomType), deref(s.RoomSubtype), deref(s.RoomCategory)),
		TotalPrice: money.FormatNull(s.TotalPrice, symbol),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
