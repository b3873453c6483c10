package app

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cruise-price-tracker/internal/service"
)

func TestWritePointsCSV(t *testing.T) {
	points := []service.ChartPoint{
		{
			ScrapedAt:  time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC),
			TotalPrice: decimal.NewNullDecimal(decimal.RequireFromString("1234.5")),
			Discounts:  decimal.NewNullDecimal(decimal.RequireFromString("-75")),
		},
		{
			ScrapedAt: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writePointsCSV(&buf, points))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "scraped_at,total_price,subtotal,cruise_fare,discounts,taxes_and_fees", lines[0])
	assert.Equal(t, "2024-01-01T23:00:00Z,1234.50,,,-75.00,", lines[1])
	assert.Equal(t, "2024-01-02T05:00:00Z,,,,,", lines[2])
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "series.csv")

	err := writeFile(path, func(w io.Writer) error {
		return writePointsCSV(w, nil)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "scraped_at,total_price,subtotal,cruise_fare,discounts,taxes_and_fees\n", string(data))
}

func TestWritePointsPNG(t *testing.T) {
	points := []service.ChartPoint{
		{
			ScrapedAt:  time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
			TotalPrice: decimal.NewNullDecimal(decimal.NewFromInt(100)),
			Subtotal:   decimal.NewNullDecimal(decimal.NewFromInt(90)),
		},
		{
			ScrapedAt:  time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC),
			TotalPrice: decimal.NewNullDecimal(decimal.NewFromInt(130)),
			Subtotal:   decimal.NewNullDecimal(decimal.NewFromInt(110)),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writePointsPNG(&buf, points))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}
