package downloads

import (
	"context"

	"linkhaul/internal/logging"
	"linkhaul/internal/services"
	"linkhaul/internal/store"
)

// Pause asks the engine to pause the transfer. It reports false when the
// download has no handle, cannot move to PAUSED, or the engine refused.
func (s *Service) Pause(ctx context.Context, id int64) (bool, error) {
	return s.control(ctx, id, "", store.DownloadPaused, "paused", func(d *store.Download) error {
		return s.engine.Pause(ctx, d.EngineHandle)
	})
}

// Resume unpauses a PAUSED download.
func (s *Service) Resume(ctx context.Context, id int64) (bool, error) {
	return s.control(ctx, id, store.DownloadPaused, store.DownloadDownloading, "resumed", func(d *store.Download) error {
		return s.engine.Resume(ctx, d.EngineHandle)
	})
}

// Cancel force-removes the transfer and marks the download CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64) (bool, error) {
	return s.control(ctx, id, "", store.DownloadCancelled, "cancelled", func(d *store.Download) error {
		return s.engine.Remove(ctx, d.EngineHandle, true)
	})
}

// control applies a user action. from, when set, is the only status the
// action applies to; otherwise the transition table decides.
func (s *Service) control(ctx context.Context, id int64, from, target store.DownloadStatus, verb string, op func(*store.Download) error) (bool, error) {
	unlock := s.lock(id)
	defer unlock()

	d, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, services.NotFound("download", id)
	}
	if d.EngineHandle == "" || !store.CanTransitionDownload(d.Status, target) {
		return false, nil
	}
	if from != "" && d.Status != from {
		return false, nil
	}
	if err := op(d); err != nil {
		logging.WarnWithContext(s.log(ctx, d), "engine refused download action", "download_control_failed",
			logging.String("target", string(target)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check engine connectivity"),
			logging.String(logging.FieldImpact, "download state unchanged"),
		)
		return false, nil
	}

	previous := d.Status
	d.Status = target
	if target == store.DownloadCancelled || target == store.DownloadPaused {
		d.Speed = 0
		d.ETASeconds = -1
	}
	if err := s.store.UpdateDownload(ctx, d); err != nil {
		return false, err
	}
	s.log(ctx, d).Info("download "+verb,
		logging.String("from", string(previous)),
		logging.String("to", string(target)),
	)
	return true, nil
}

// Retry re-submits a FAILED download as a fresh engine transfer. The old
// handle is force-removed on a best-effort basis and cleared before the new
// submission, so at most one live transfer exists per download.
func (s *Service) Retry(ctx context.Context, id int64) (*store.Download, error) {
	unlock := s.lock(id)
	defer unlock()

	d, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, services.NotFound("download", id)
	}
	if d.Status != store.DownloadFailed {
		return nil, ErrNotRetryable
	}

	if d.EngineHandle != "" {
		if err := s.engine.Remove(ctx, d.EngineHandle, true); err != nil {
			s.log(ctx, d).Debug("engine remove failed before retry", logging.Error(err))
		}
	}
	d.EngineHandle = ""
	d.RetryCount++
	d.ErrorMessage = ""
	d.Progress = 0
	d.Speed = 0
	d.DownloadedBytes = 0
	d.ETASeconds = -1

	gid, err := s.engine.AddURI(ctx, []string{d.URL}, s.options(d, s.targetDir(ctx, d)))
	if err != nil {
		d.ErrorMessage = "failed to retry in engine: " + err.Error()
		logging.WarnWithContext(s.log(ctx, d), "download retry rejected", "download_retry_failed",
			logging.Int("retry_count", d.RetryCount),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check engine connectivity"),
			logging.String(logging.FieldImpact, "download remains failed"),
		)
	} else {
		d.EngineHandle = gid
		d.Status = store.DownloadQueued
	}
	if err := s.store.UpdateDownload(ctx, d); err != nil {
		return nil, err
	}
	if d.Status == store.DownloadQueued {
		s.log(ctx, d).Info("download requeued", logging.Int("retry_count", d.RetryCount))
	}
	return d, nil
}
