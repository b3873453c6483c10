package app

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"cruise-price-tracker/internal/service"
)

// Export renders the chart series as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	window, err := service.ParseWindow(opts.Window)
	if err != nil {
		return err
	}
	limit := a.Config.ResolveMaxPoints(opts.Limit)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(serviceDeps{store: store})
	if err != nil {
		return err
	}

	points, err := svc.Chart(ctx, limit, window)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Msg("no snapshots found for export")
		return nil
	}
	a.Logger.Info().Int("points", len(points)).Str("window", string(window)).Msg("exporting chart series")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error { return writePointsCSV(w, points) }); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(points) < 2 {
			a.Logger.Warn().Msg("need at least two points to draw a chart; skipping png")
			return nil
		}
		if err := writeFile(opts.PNGPath, func(w io.Writer) error { return writePointsPNG(w, points) }); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return write(file)
}

func writePointsCSV(out io.Writer, points []service.ChartPoint) error {
	writer := csv.NewWriter(out)

	header := []string{"scraped_at", "total_price", "subtotal", "cruise_fare", "discounts", "taxes_and_fees"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.ScrapedAt.UTC().Format(time.RFC3339),
			csvDecimal(p.TotalPrice),
			csvDecimal(p.Subtotal),
			csvDecimal(p.CruiseFare),
			csvDecimal(p.Discounts),
			csvDecimal(p.TaxesAndFees),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsPNG(out io.Writer, points []service.ChartPoint) error {
	x := make([]time.Time, len(points))
	total := make([]float64, len(points))
	subtotal := make([]float64, len(points))
	taxes := make([]float64, len(points))

	for i, p := range points {
		x[i] = p.ScrapedAt
		total[i] = p.TotalPrice.Decimal.InexactFloat64()
		subtotal[i] = p.Subtotal.Decimal.InexactFloat64()
		taxes[i] = p.TaxesAndFees.Decimal.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Total price",
				XValues: x,
				YValues: total,
			},
			chart.TimeSeries{
				Name:    "Subtotal",
				XValues: x,
				YValues: subtotal,
			},
			chart.TimeSeries{
				Name:    "Taxes & fees",
				XValues: x,
				YValues: taxes,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, out)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func csvDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
