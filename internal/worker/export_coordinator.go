package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundreach/fanscout/internal/export"
)

// ExportCoordinator periodically writes a CSV snapshot of the candidate pool
// and uploads it to object storage.
type ExportCoordinator struct {
	source   export.Source
	uploader export.Uploader
	dir      string
	interval time.Duration
	now      func() time.Time
}

// NewExportCoordinator creates a coordinator writing exports under dir.
// The uploader may be a NoopUploader when object storage is not configured.
func NewExportCoordinator(source export.Source, uploader export.Uploader, dir string, interval time.Duration) *ExportCoordinator {
	return &ExportCoordinator{
		source:   source,
		uploader: uploader,
		dir:      dir,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the coordinator loop.
func (c *ExportCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "export-coordinator",
		"action", "worker_started",
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "export-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.exportOnce(ctx)
		}
	}
}

// ExportNow writes and uploads one export immediately. Used by the manual
// export endpoint; returns the local path and candidate count.
func (c *ExportCoordinator) ExportNow(ctx context.Context) (string, int, error) {
	now := c.now()
	path, count, err := export.WriteFile(ctx, c.source, c.dir, now)
	if err != nil {
		return "", 0, err
	}

	name := export.ObjectName(now)
	if err := c.uploader.Upload(ctx, name, path); err != nil {
		return path, count, err
	}
	return path, count, nil
}

func (c *ExportCoordinator) exportOnce(ctx context.Context) {
	path, count, err := c.ExportNow(ctx)
	if err != nil {
		slog.Error("export failed",
			"component", "worker",
			"worker", "export-coordinator",
			"action", "export_failed",
			"error", err,
		)
		return
	}

	slog.Info("export completed",
		"component", "worker",
		"worker", "export-coordinator",
		"action", "export_completed",
		"path", path,
		"candidates", count,
	)
}
