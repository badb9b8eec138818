package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"linkhaul/internal/config"
	"linkhaul/internal/engine"
	"linkhaul/internal/keylock"
	"linkhaul/internal/logging"
	"linkhaul/internal/services"
	"linkhaul/internal/store"
)

// ErrNotRetryable is returned by Retry for downloads that are not FAILED.
var ErrNotRetryable = fmt.Errorf("%w: download is not in a retryable state", services.ErrConflict)

// Engine is the subset of the aria2 client the orchestrator drives.
type Engine interface {
	AddURI(ctx context.Context, uris []string, opts engine.Options) (string, error)
	Status(ctx context.Context, handle string) (*engine.Status, error)
	Pause(ctx context.Context, handle string) error
	Resume(ctx context.Context, handle string) error
	Remove(ctx context.Context, handle string, force bool) error
	GlobalStats(ctx context.Context) (*engine.GlobalStats, error)
}

var _ Engine = (*engine.Client)(nil)

const defaultConcurrency = 4

// Option customizes a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "downloads")
	}
}

// WithLocks shares a keylock set with other services.
func WithLocks(locks *keylock.Set) Option {
	return func(s *Service) {
		if locks != nil {
			s.locks = locks
		}
	}
}

// Service owns the lifecycle of individual downloads: submission to the
// engine, status reconciliation and user control actions. Mutations of a
// given download are serialized through its keylock entry.
type Service struct {
	store         *store.Store
	engine        Engine
	transfer      config.Engine
	incompleteDir string
	concurrency   int
	locks         *keylock.Set
	logger        *slog.Logger
}

// NewService wires the orchestrator.
func NewService(cfg *config.Config, st *store.Store, eng Engine, opts ...Option) *Service {
	s := &Service{
		store:       st,
		engine:      eng,
		concurrency: defaultConcurrency,
		locks:       keylock.New(),
		logger:      logging.NewComponentLogger(nil, "downloads"),
	}
	if cfg != nil {
		s.transfer = cfg.Engine
		s.incompleteDir = cfg.Paths.IncompleteDir
		if cfg.Reconcile.Concurrency > 0 {
			s.concurrency = cfg.Reconcile.Concurrency
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func lockKey(id int64) string {
	return "d:" + strconv.FormatInt(id, 10)
}

func (s *Service) lock(id int64) func() {
	return s.locks.Lock(lockKey(id))
}

func (s *Service) log(ctx context.Context, d *store.Download) *slog.Logger {
	logger := logging.WithContext(ctx, s.logger)
	if d != nil {
		logger = logger.With(logging.Int64(logging.FieldDownloadID, d.ID))
		if d.EngineHandle != "" {
			logger = logger.With(logging.String(logging.FieldEngineHandle, d.EngineHandle))
		}
	}
	return logger
}

// SubmitRequest describes one URL to download.
type SubmitRequest struct {
	URL          string
	Filename     string
	ContainerID  *int64
	CredentialID *int64
	// Dir overrides the engine target directory for this submission only.
	// It is not persisted: Retry derives the directory again from the
	// container folder under the incomplete dir.
	Dir string
}

// Submit persists a PENDING record and hands the URL to the engine. Engine
// failures leave the record FAILED and are not returned; the error is non-nil
// only when the record could not be persisted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Download, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrValidation, "downloads", "submit", "url is required", nil)
	}
	d := &store.Download{
		URL:          rawURL,
		Filename:     strings.TrimSpace(req.Filename),
		Status:       store.DownloadPending,
		ETASeconds:   -1,
		ContainerID:  req.ContainerID,
		CredentialID: req.CredentialID,
	}
	if err := s.persistNew(ctx, d); err != nil {
		return nil, err
	}

	unlock := s.lock(d.ID)
	defer unlock()

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.targetDir(ctx, d)
	}
	gid, err := s.engine.AddURI(ctx, []string{d.URL}, s.options(d, dir))
	if err != nil {
		d.Status = store.DownloadFailed
		d.ErrorMessage = "failed to add to engine: " + err.Error()
		logging.WarnWithContext(s.log(ctx, d), "engine rejected download", "download_submit_failed",
			logging.String(logging.FieldURL, d.URL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check engine connectivity, then retry the download"),
			logging.String(logging.FieldImpact, "download marked failed"),
		)
	} else {
		d.EngineHandle = gid
		d.Status = store.DownloadQueued
	}
	if err := s.store.UpdateDownload(ctx, d); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}
	if d.Status == store.DownloadQueued {
		s.log(ctx, d).Info("download queued", logging.String(logging.FieldURL, d.URL))
	}
	return d, nil
}

// persistNew inserts a fresh record. Container members are bounded by the
// container's fixed link count.
func (s *Service) persistNew(ctx context.Context, d *store.Download) error {
	if d.ContainerID == nil {
		if err := s.store.CreateDownload(ctx, d); err != nil {
			return fmt.Errorf("persist download: %w", err)
		}
		return nil
	}
	id := *d.ContainerID
	c, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("load container: %w", err)
	}
	if c == nil {
		return services.NotFound("container", id)
	}
	err = s.store.CreateContainerMember(ctx, d)
	if errors.Is(err, store.ErrContainerFull) {
		return services.Wrap(services.ErrConflict, "downloads", "submit",
			fmt.Sprintf("container %d already holds its %d links", id, c.TotalLinks), err)
	}
	if err != nil {
		return fmt.Errorf("persist download: %w", err)
	}
	return nil
}

func (s *Service) targetDir(ctx context.Context, d *store.Download) string {
	if s.incompleteDir == "" {
		return ""
	}
	if d.ContainerID == nil {
		return s.incompleteDir
	}
	c, err := s.store.GetContainer(ctx, *d.ContainerID)
	if err != nil || c == nil || c.FolderName == "" {
		return s.incompleteDir
	}
	return filepath.Join(s.incompleteDir, c.FolderName)
}

func (s *Service) options(d *store.Download, dir string) engine.Options {
	opts := engine.TransferOptions(s.transfer, dir)
	if d.Filename != "" {
		opts["out"] = d.Filename
	}
	return opts
}

// Get returns a download or a NotFound error.
func (s *Service) Get(ctx context.Context, id int64) (*store.Download, error) {
	d, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, services.NotFound("download", id)
	}
	return d, nil
}

// ListOptions narrows List results.
type ListOptions struct {
	Statuses    []store.DownloadStatus
	ContainerID *int64
	Limit       int
	Offset      int
	// SkipReconcile returns stored rows without refreshing in-flight ones
	// from the engine.
	SkipReconcile bool
}

// List returns downloads newest first. In-flight rows are reconciled before
// being returned unless SkipReconcile is set.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*store.Download, error) {
	rows, err := s.store.ListDownloads(ctx, store.DownloadFilter{
		Statuses:    opts.Statuses,
		ContainerID: opts.ContainerID,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
	if err != nil {
		return nil, err
	}
	if opts.SkipReconcile {
		return rows, nil
	}
	var ids []int64
	for _, d := range rows {
		if needsReconcile(d) {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return rows, nil
	}
	refreshed, err := s.ReconcileActive(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*store.Download, len(refreshed))
	for _, d := range refreshed {
		if d != nil {
			byID[d.ID] = d
		}
	}
	for i, d := range rows {
		if fresh, ok := byID[d.ID]; ok {
			rows[i] = fresh
		}
	}
	return rows, nil
}

func needsReconcile(d *store.Download) bool {
	return d.EngineHandle != "" && !d.Status.IsTerminal() && d.Status != store.DownloadFailed
}

// Delete removes the engine transfer when possible and then the record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock := s.lock(id)
	defer unlock()

	d, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return services.NotFound("download", id)
	}
	if d.EngineHandle != "" {
		if err := s.engine.Remove(ctx, d.EngineHandle, true); err != nil {
			s.log(ctx, d).Debug("engine remove failed during delete", logging.Error(err))
		}
	}
	if err := s.store.DeleteDownload(ctx, id); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return services.NotFound("download", id)
		}
		return err
	}
	s.log(ctx, d).Info("download deleted")
	return nil
}

func markUpdated(d *store.Download) {
	if d.Status == store.DownloadCompleted && d.CompletedAt == nil {
		now := time.Now().UTC()
		d.CompletedAt = &now
	}
}
