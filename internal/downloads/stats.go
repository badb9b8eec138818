package downloads

import (
	"context"

	"linkhaul/internal/logging"
	"linkhaul/internal/store"
)

// GlobalStats merges stored download counts with live engine throughput.
type GlobalStats struct {
	Total           int
	Pending         int
	Active          int
	Completed       int
	Failed          int
	Cancelled       int
	DownloadSpeed   int64
	NumActive       int
	NumWaiting      int
	EngineAvailable bool
}

// Stats returns aggregate counts. Engine fields stay zero, with
// EngineAvailable=false, when the engine cannot be reached.
func (s *Service) Stats(ctx context.Context) (GlobalStats, error) {
	counts, err := s.store.CountDownloadsByStatus(ctx)
	if err != nil {
		return GlobalStats{}, err
	}
	var stats GlobalStats
	for status, n := range counts {
		stats.Total += n
		switch status {
		case store.DownloadPending:
			stats.Pending += n
		case store.DownloadQueued, store.DownloadDownloading, store.DownloadPaused:
			stats.Active += n
		case store.DownloadCompleted:
			stats.Completed += n
		case store.DownloadFailed:
			stats.Failed += n
		case store.DownloadCancelled:
			stats.Cancelled += n
		}
	}

	global, err := s.engine.GlobalStats(ctx)
	if err != nil {
		logging.WithContext(ctx, s.logger).Debug("engine stats unavailable", logging.Error(err))
		return stats, nil
	}
	stats.EngineAvailable = true
	stats.DownloadSpeed = global.DownloadSpeed
	stats.NumActive = global.NumActive
	stats.NumWaiting = global.NumWaiting
	return stats, nil
}
