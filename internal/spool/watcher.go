// Package spool ingests candidate batch files dropped into a directory by
// browser scraping scripts. Each file is a JSON array of candidate items;
// processed files are renamed with a .done suffix so a crash between
// ingest and rename re-processes at most one file.
package spool

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tmnance/insightarium/internal/ingest"
	"github.com/tmnance/insightarium/internal/models"
)

// Watcher picks up candidate batch files from a spool directory.
type Watcher struct {
	svc    *ingest.Service
	dir    string
	opts   ingest.Options
	logger *slog.Logger
}

// NewWatcher creates a spool watcher over dir. The directory must exist.
func NewWatcher(svc *ingest.Service, dir string, opts ingest.Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{svc: svc, dir: dir, opts: opts, logger: logger}
}

// Run sweeps files already present, then processes fsnotify events until
// ctx is cancelled. Files that fail to parse are left in place: a scraper
// still writing triggers another Write event when it finishes.
func (w *Watcher) Run(ctx context.Context) error {
	w.sweep(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("spool: started", slog.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			// Give a slow writer a moment to finish the file.
			time.Sleep(50 * time.Millisecond)
			w.processFile(ctx, ev.Name)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("spool: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep processes batch files that arrived while the service was down.
func (w *Watcher) sweep(ctx context.Context) {
	paths, err := filepath.Glob(filepath.Join(w.dir, "*.json"))
	if err != nil {
		w.logger.Warn("spool: sweep failed", slog.String("error", err.Error()))
		return
	}
	for _, p := range paths {
		w.processFile(ctx, p)
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("spool: read failed", slog.String("file", path), slog.String("error", err.Error()))
		return
	}

	var cands []models.CandidateItem
	if err := json.Unmarshal(data, &cands); err != nil {
		w.logger.Warn("spool: parse failed, leaving file in place",
			slog.String("file", path), slog.String("error", err.Error()))
		return
	}

	results := w.svc.IngestBatch(ctx, cands, w.opts)
	var created, updated, duplicate, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Result.Status == ingest.StatusNew:
			created++
		case r.Result.Status == ingest.StatusChanged:
			updated++
		default:
			duplicate++
		}
	}

	if err := os.Rename(path, path+".done"); err != nil {
		w.logger.Warn("spool: rename failed", slog.String("file", path), slog.String("error", err.Error()))
	}

	w.logger.Info("spool: batch processed",
		slog.String("file", filepath.Base(path)),
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("duplicate", duplicate),
		slog.Int("failed", failed))
}
