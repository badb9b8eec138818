package containers

import (
	"context"
	"errors"
	"time"

	"linkhaul/internal/logging"
	"linkhaul/internal/notifications"
	"linkhaul/internal/services"
	"linkhaul/internal/store"
)

// Tally is the member breakdown a container status is derived from.
type Tally struct {
	Total     int
	Completed int
	Failed    int
	Active    int
}

// Resolve applies the status precedence: all completed, all failed, any
// active, settled with failures, otherwise pending.
func (t Tally) Resolve() store.ContainerStatus {
	switch {
	case t.Completed == t.Total:
		return store.ContainerCompleted
	case t.Failed == t.Total:
		return store.ContainerFailed
	case t.Active > 0:
		return store.ContainerActive
	case t.Failed > 0 && t.Completed+t.Failed == t.Total:
		return store.ContainerFailed
	default:
		return store.ContainerPending
	}
}

func tally(total int, counts map[store.DownloadStatus]int) Tally {
	t := Tally{Total: total}
	members := 0
	for status, n := range counts {
		members += n
		switch {
		case status == store.DownloadCompleted:
			t.Completed += n
		case status == store.DownloadFailed:
			t.Failed += n
		case status.IsActive():
			t.Active += n
		}
	}
	// Links whose record never got persisted count as failed.
	if missing := total - members; missing > 0 {
		t.Failed += missing
	}
	if t.Completed > total {
		t.Completed = total
	}
	if t.Completed+t.Failed > total {
		t.Failed = total - t.Completed
	}
	return t
}

// Reconcile recomputes a container's counters and status from its members.
// Gated and empty containers, and containers whose members are still being
// submitted, are returned unchanged. Nothing is written when the result
// matches the stored row.
func (s *Service) Reconcile(ctx context.Context, id int64) (*store.Container, error) {
	unlock := s.locks.Lock(lockKey(id))
	defer unlock()

	c, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, services.NotFound("container", id)
	}
	if c.Status.NeedsInput() || c.TotalLinks == 0 {
		return c, nil
	}
	populating := c.Extra.Populating
	if populating {
		if time.Now().Before(s.populatingDeadline(c)) {
			return c, nil
		}
		logging.WarnWithContext(s.log(ctx, c), "container creation did not finish", "container_populate_stale",
			logging.Int("total", c.TotalLinks),
			logging.String(logging.FieldErrorHint, "the creating process likely exited; delete and re-add the container to retry missing links"),
			logging.String(logging.FieldImpact, "links without a download record count as failed"),
		)
		c.Extra.Populating = false
	}

	counts, err := s.store.CountContainerDownloads(ctx, id)
	if err != nil {
		return nil, err
	}
	t := tally(c.TotalLinks, counts)
	status := t.Resolve()
	if !populating && status == c.Status && t.Completed == c.CompletedLinks && t.Failed == c.FailedLinks {
		return c, nil
	}

	previous := c.Status
	c.Status = status
	c.CompletedLinks = t.Completed
	c.FailedLinks = t.Failed
	if err := s.store.UpdateContainer(ctx, c); err != nil {
		return nil, err
	}
	if previous != status {
		s.log(ctx, c).Info("container status changed",
			logging.String("from", string(previous)),
			logging.String("to", string(status)),
			logging.Int("completed", t.Completed),
			logging.Int("failed", t.Failed),
			logging.Int("total", t.Total),
		)
		switch status {
		case store.ContainerCompleted:
			s.notify(ctx, c, notifications.EventContainerCompleted, nil)
		case store.ContainerFailed:
			s.notify(ctx, c, notifications.EventContainerFailed, nil)
		}
	}
	return c, nil
}

// Refresh reconciles member downloads against the engine, then the
// container itself.
func (s *Service) Refresh(ctx context.Context, id int64) (*store.Container, error) {
	members, err := s.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, d := range members {
		if d.EngineHandle != "" && !d.Status.IsTerminal() {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) > 0 {
		if _, err := s.downloads.ReconcileActive(services.WithContainerID(ctx, id), ids); err != nil {
			return nil, err
		}
	}
	return s.Reconcile(ctx, id)
}

// Sweep recomputes every active or pending container and returns how many
// were examined.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	rows, err := s.store.ContainersByStatus(ctx, store.ContainerActive, store.ContainerPending)
	if err != nil {
		return 0, err
	}
	for _, c := range rows {
		if _, err := s.Reconcile(ctx, c.ID); err != nil && !errors.Is(err, services.ErrNotFound) {
			return 0, err
		}
	}
	return len(rows), nil
}
