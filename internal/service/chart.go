package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cruise-price-tracker/internal/storage"
)

// Window selects the chart aggregation granularity.
type Window string

const (
	WindowHours  Window = "hours"
	WindowDays   Window = "days"
	WindowMonths Window = "months"
)

// ErrInvalidWindow is returned for an unknown window name.
var ErrInvalidWindow = errors.New("invalid window")

// ParseWindow accepts hours, days or months in any case. Empty means hours.
func ParseWindow(raw string) (Window, error) {
	switch Window(strings.ToLower(strings.TrimSpace(raw))) {
	case "", WindowHours:
		return WindowHours, nil
	case WindowDays:
		return WindowDays, nil
	case WindowMonths:
		return WindowMonths, nil
	default:
		return "", ErrInvalidWindow
	}
}

func (w Window) layout() string {
	switch w {
	case WindowDays:
		return "2006-01-02"
	case WindowMonths:
		return "2006-01"
	default:
		return ""
	}
}

// ChartPoint is a derived price sample for plotting.
type ChartPoint struct {
	ScrapedAt    time.Time
	CruiseFare   decimal.NullDecimal
	Discounts    decimal.NullDecimal
	Subtotal     decimal.NullDecimal
	TaxesAndFees decimal.NullDecimal
	TotalPrice   decimal.NullDecimal
}

func pointOf(s storage.Snapshot) ChartPoint {
	return ChartPoint{
		ScrapedAt:    s.ScrapedAt,
		CruiseFare:   s.CruiseFare,
		Discounts:    s.Discounts,
		Subtotal:     s.Subtotal,
		TaxesAndFees: s.TaxesAndFees,
		TotalPrice:   s.TotalPrice,
	}
}

// Chart reads the oldest limit snapshots and aggregates them by window. Daily and monthly
// buckets keep the last snapshot seen in each bucket, ordered by first appearance.
func (s *Service) Chart(ctx context.Context, limit int, window Window) ([]ChartPoint, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	window, err := ParseWindow(string(window))
	if err != nil {
		return nil, err
	}

	snapshots, err := s.snapshots.ListOldestSnapshots(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("chart snapshots: %w", err)
	}
	return Bucket(snapshots, window, s.location), nil
}

// Bucket groups snapshots (already in ascending scrape order) by window in loc.
func Bucket(snapshots []storage.Snapshot, window Window, loc *time.Location) []ChartPoint {
	if loc == nil {
		loc = time.UTC
	}

	layout := window.layout()
	if layout == "" {
		points := make([]ChartPoint, 0, len(snapshots))
		for _, snap := range snapshots {
			points = append(points, pointOf(snap))
		}
		return points
	}

	points := make([]ChartPoint, 0)
	index := make(map[string]int)
	for _, snap := range snapshots {
		key := snap.ScrapedAt.In(loc).Format(layout)
		if i, ok := index[key]; ok {
			points[i] = pointOf(snap)
			continue
		}
		index[key] = len(points)
		points = append(points, pointOf(snap))
	}
	return points
}
