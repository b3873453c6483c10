package app

import (
	"context"
	"os"

	"cruise-price-tracker/internal/storage"
)

// Crawl runs one acquisition. With DryRun the snapshot is printed but not stored and no
// alert is sent.
func (a *App) Crawl(ctx context.Context, opts CrawlOptions) error {
	acquirer := a.newAcquirer()

	if opts.DryRun {
		a.Logger.Warn().Msg("crawl dry-run: snapshot will not be stored")
		snapshot, err := acquirer.Acquire(ctx)
		if err != nil {
			return err
		}
		writeSnapshotTable(os.Stdout, []storage.Snapshot{snapshot})
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(serviceDeps{store: store, acquirer: acquirer})
	if err != nil {
		return err
	}

	snapshot, err := svc.Crawl(ctx)
	if err != nil {
		return err
	}
	writeSnapshotTable(os.Stdout, []storage.Snapshot{snapshot})
	return nil
}
