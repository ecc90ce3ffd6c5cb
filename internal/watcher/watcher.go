// Package watcher tracks whether deployment folders are still reachable.
// Camera cards and field drives come and go, so presence is polled rather
// than assumed.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/camtrap/camtrap-agent/internal/catalog"
)

type Watcher struct {
	repo     catalog.Repository
	interval time.Duration
	logger   *slog.Logger
}

func New(repo catalog.Repository, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{repo: repo, interval: interval, logger: logger}
}

// Start polls deployment paths until the context is cancelled. It flips the
// Present flag in the catalog when a folder disappears or comes back.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("starting presence watcher", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.checkAll(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("presence watcher stopped")
			return
		case <-ticker.C:
			w.checkAll(ctx)
		}
	}
}

func (w *Watcher) checkAll(ctx context.Context) {
	deployments, err := w.repo.ListDeployments(ctx)
	if err != nil {
		w.logger.Error("failed to list deployments", "error", err)
		return
	}

	for _, d := range deployments {
		present := pathPresent(d.Path)
		if present == d.Present {
			continue
		}

		if err := w.repo.UpdateDeploymentPresent(ctx, d.ID, present); err != nil {
			w.logger.Error("failed to update presence", "deployment_id", d.ID, "error", err)
			continue
		}

		if present {
			w.logger.Info("deployment folder reconnected", "deployment_id", d.ID, "path", d.Path)
		} else {
			w.logger.Warn("deployment folder disconnected", "deployment_id", d.ID, "path", d.Path)
		}
	}
}

func pathPresent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
