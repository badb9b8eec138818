package downloads

import (
	"context"
	"errors"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"linkhaul/internal/engine"
	"linkhaul/internal/logging"
	"linkhaul/internal/services"
	"linkhaul/internal/store"
)

const engineErrorMessage = "download error reported by engine"

// Reconcile pulls the engine's view of a download and persists any change.
// It is idempotent: a second call with no engine-side change writes nothing.
// An unreachable engine leaves the row untouched and is not an error.
func (s *Service) Reconcile(ctx context.Context, id int64) (*store.Download, error) {
	unlock := s.lock(id)
	defer unlock()

	d, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, services.NotFound("download", id)
	}
	return s.reconcileLocked(ctx, d)
}

func (s *Service) reconcileLocked(ctx context.Context, d *store.Download) (*store.Download, error) {
	if d.EngineHandle == "" || d.Status.IsTerminal() {
		return d, nil
	}
	status, err := s.engine.Status(ctx, d.EngineHandle)
	if err != nil {
		s.log(ctx, d).Debug("engine status unavailable; keeping stored state", logging.Error(err))
		return d, nil
	}

	before := d.Clone()
	applyEngineStatus(d, status)
	if !changed(before, d) {
		return d, nil
	}
	if err := s.store.UpdateDownload(ctx, d); err != nil {
		return nil, err
	}
	if before.Status != d.Status {
		logger := s.log(ctx, d)
		attrs := []logging.Attr{
			logging.String("from", string(before.Status)),
			logging.String("to", string(d.Status)),
		}
		if d.Status == store.DownloadFailed {
			attrs = append(attrs,
				logging.String("engine_error_code", status.ErrorCode),
				logging.String("engine_error", status.ErrorMessage),
			)
			logging.WarnWithContext(logger, "download failed in engine", "download_failed", append(attrs,
				logging.String(logging.FieldErrorHint, "inspect the hoster link or retry the download"),
				logging.String(logging.FieldImpact, "download will not complete without a retry"),
			)...)
		} else {
			logger.Info("download status changed", logging.Args(attrs...)...)
		}
	}
	return d, nil
}

func mapEngineState(state string) store.DownloadStatus {
	switch state {
	case engine.StateActive:
		return store.DownloadDownloading
	case engine.StateComplete:
		return store.DownloadCompleted
	case engine.StateError:
		return store.DownloadFailed
	case engine.StatePaused:
		return store.DownloadPaused
	default:
		return ""
	}
}

func applyEngineStatus(d *store.Download, status *engine.Status) {
	next := mapEngineState(status.State)
	if next == store.DownloadCompleted && (len(status.Files) == 0 || status.Files[0].Path == "") {
		next = ""
	}
	if next != "" && next != d.Status && store.CanTransitionDownload(d.Status, next) {
		d.Status = next
		switch next {
		case store.DownloadCompleted:
			d.FilePath = status.Files[0].Path
			d.Filename = filepath.Base(d.FilePath)
			d.ErrorMessage = ""
			markUpdated(d)
		case store.DownloadFailed:
			d.ErrorMessage = engineErrorMessage
		}
	}

	d.TotalBytes = status.TotalLength
	d.DownloadedBytes = status.CompletedLength
	d.Speed = status.DownloadSpeed
	d.Progress = status.Progress()
	d.ETASeconds = status.ETASeconds()
}

func changed(a, b *store.Download) bool {
	if a.Status != b.Status ||
		a.Progress != b.Progress ||
		a.Speed != b.Speed ||
		a.TotalBytes != b.TotalBytes ||
		a.DownloadedBytes != b.DownloadedBytes ||
		a.ETASeconds != b.ETASeconds ||
		a.FilePath != b.FilePath ||
		a.Filename != b.Filename ||
		a.ErrorMessage != b.ErrorMessage {
		return true
	}
	return (a.CompletedAt == nil) != (b.CompletedAt == nil)
}

// ReconcileActive reconciles ids with bounded concurrency and returns the
// refreshed rows in input order. Rows deleted in the meantime are skipped.
func (s *Service) ReconcileActive(ctx context.Context, ids []int64) ([]*store.Download, error) {
	out := make([]*store.Download, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := s.Reconcile(gctx, id)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return nil
				}
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result := out[:0]
	for _, d := range out {
		if d != nil {
			result = append(result, d)
		}
	}
	return result, nil
}

// Sweep reconciles every in-flight download. It returns how many rows were
// examined.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	rows, err := s.store.DownloadsByStatus(ctx, store.DownloadQueued, store.DownloadDownloading, store.DownloadPaused)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(rows))
	for _, d := range rows {
		if d.EngineHandle != "" {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := s.ReconcileActive(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
