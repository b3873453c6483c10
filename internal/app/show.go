package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"cruise-price-tracker/internal/money"
	"cruise-price-tracker/internal/storage"
)

// Show prints recent snapshots, newest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	total, err := store.CountSnapshots(ctx)
	if err != nil {
		return err
	}

	writeSnapshotTable(os.Stdout, snapshots)
	fmt.Fprintf(os.Stdout, "showing %d of %d stored snapshots\n", len(snapshots), total)
	return nil
}

func writeSnapshotTable(out io.Writer, snapshots []storage.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Scraped at (UTC)", "Total", "Subtotal", "Fare", "Discounts", "Taxes & fees", "Room"})

	for _, s := range snapshots {
		symbol := money.DefaultSymbol
		if s.CurrencyCode != nil {
			symbol = money.Symbol(*s.CurrencyCode)
		}
		room := ""
		if s.RoomType != nil {
			room = *s.RoomType
		}
		t.AppendRow(table.Row{
			s.ScrapedAt.UTC().Format(time.RFC3339),
			money.FormatNull(s.TotalPrice, symbol),
			money.FormatNull(s.Subtotal, symbol),
			money.FormatNull(s.CruiseFare, symbol),
			money.FormatNull(s.Discounts, symbol),
			money.FormatNull(s.TaxesAndFees, symbol),
			room,
		})
	}
	t.Render()
}
