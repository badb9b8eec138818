package containers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"linkhaul/internal/config"
	"linkhaul/internal/downloads"
	"linkhaul/internal/extract"
	"linkhaul/internal/keylock"
	"linkhaul/internal/logging"
	"linkhaul/internal/notifications"
	"linkhaul/internal/services"
	"linkhaul/internal/store"
	"linkhaul/internal/textutil"
)

// Extractor is the link discovery dependency.
type Extractor interface {
	Extract(ctx context.Context, containerURL, password string) (*extract.Result, error)
	ResolveRedirect(ctx context.Context, link string) (string, bool, error)
}

var _ Extractor = (*extract.Extractor)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "containers")
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

// WithNotifier publishes terminal and gated outcomes.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// Service creates containers from pages or URL lists and rolls member
// download states up into a container status.
type Service struct {
	store            *store.Store
	downloads        *downloads.Service
	extractor        Extractor
	resolveRedirects bool
	submitTimeout    time.Duration
	locks            *keylock.Set
	notifier         notifications.Service
	logger           *slog.Logger
}

// NewService wires the container orchestrator.
func NewService(cfg *config.Config, st *store.Store, dl *downloads.Service, ex Extractor, opts ...Option) *Service {
	s := &Service{
		store:     st,
		downloads: dl,
		extractor: ex,
		locks:     keylock.New(),
		notifier:  notifications.NewService(nil),
		logger:    logging.NewComponentLogger(nil, "containers"),
	}
	if cfg != nil {
		s.resolveRedirects = cfg.Extract.ResolveRedirects
		s.submitTimeout = cfg.EngineTimeout()
	}
	if s.submitTimeout <= 0 {
		s.submitTimeout = defaultSubmitTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	defaultSubmitTimeout = 10 * time.Second
	populatingGrace      = 5 * time.Minute
)

// populatingDeadline bounds how long a container may stay in the populating
// phase before reconcile treats its missing members as failed.
func (s *Service) populatingDeadline(c *store.Container) time.Time {
	return c.UpdatedAt.Add(populatingGrace + time.Duration(c.TotalLinks)*s.submitTimeout)
}

func lockKey(id int64) string {
	return "c:" + strconv.FormatInt(id, 10)
}

func (s *Service) log(ctx context.Context, c *store.Container) *slog.Logger {
	logger := logging.WithContext(ctx, s.logger)
	if c != nil {
		logger = logger.With(logging.Int64(logging.FieldContainerID, c.ID))
	}
	return logger
}

// CreateRequest asks for a container built from an extracted page.
type CreateRequest struct {
	URL          string
	Password     string
	CredentialID *int64
	Name         string
	Folder       string
}

// ManualRequest asks for a container built from a literal URL list.
type ManualRequest struct {
	Name         string
	URLs         []string
	Folder       string
	Password     string
	CredentialID *int64
}

// CreateFromURL extracts links from the page at req.URL and submits each one.
// Extraction failures are returned and nothing is persisted. A password or
// captcha gate persists a pending_* container without downloads.
func (s *Service) CreateFromURL(ctx context.Context, req CreateRequest) (*store.Container, error) {
	rawURL := strings.TrimSpace(req.URL)
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	result, err := s.extractor.Extract(ctx, rawURL, req.Password)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "containers", "extract", "link extraction failed", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = result.Name
	}
	c := &store.Container{
		Name:         name,
		URL:          rawURL,
		Source:       result.Source,
		FolderName:   folderFor(req.Folder, name),
		Password:     result.Password,
		CredentialID: req.CredentialID,
		Extra: store.Extraction{
			EncryptedPayload: result.EncryptedPayload,
			LinkListURL:      result.LinkListURL,
		},
	}

	if result.Gated() {
		return s.persistGated(ctx, c, result)
	}

	links := result.Links
	if s.resolveRedirects {
		links = s.resolveLinks(ctx, links)
	}
	return s.createWithLinks(ctx, c, links)
}

// CreateManual builds a container from caller-supplied URLs. The list is used
// verbatim, duplicates included.
func (s *Service) CreateManual(ctx context.Context, req ManualRequest) (*store.Container, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "containers", "create manual", "name is required", nil)
	}
	c := &store.Container{
		Name:         name,
		Source:       store.SourceManual,
		FolderName:   folderFor(req.Folder, name),
		Password:     req.Password,
		CredentialID: req.CredentialID,
	}
	return s.createWithLinks(ctx, c, req.URLs)
}

func (s *Service) persistGated(ctx context.Context, c *store.Container, result *extract.Result) (*store.Container, error) {
	gate := &store.Gate{URL: result.URL}
	if result.RequiresCaptcha {
		c.Status = store.ContainerPendingCaptcha
		c.Description = "Captcha required: " + result.CaptchaType
		gate.Kind = store.GateCaptcha
		gate.CaptchaType = result.CaptchaType
		if result.CaptchaURL != "" {
			gate.URL = result.CaptchaURL
		}
	} else {
		c.Status = store.ContainerPendingPassword
		c.Description = "Password required"
		gate.Kind = store.GatePassword
	}
	c.Extra.Gate = gate
	c.TotalLinks = 0

	if err := s.store.CreateContainer(ctx, c); err != nil {
		return nil, err
	}
	logging.WarnWithContext(s.log(ctx, c), "container waiting for input", "container_gated",
		logging.String(logging.FieldURL, c.URL),
		logging.String("gate", string(gate.Kind)),
		logging.String("captcha_type", gate.CaptchaType),
		logging.String(logging.FieldErrorHint, "solve the gate in a browser, then add the container again with the password or resolved links"),
		logging.String(logging.FieldImpact, "no downloads were created"),
	)
	s.notify(ctx, c, notifications.EventContainerGated, notifications.Payload{"reason": c.Description})
	return c, nil
}

func (s *Service) resolveLinks(ctx context.Context, links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		target := link
		if extract.IsRedirectLink(link) {
			resolved, ok, err := s.extractor.ResolveRedirect(ctx, link)
			switch {
			case err != nil:
				s.log(ctx, nil).Debug("redirect resolution failed", logging.String(logging.FieldURL, link), logging.Error(err))
			case ok:
				target = resolved
			}
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func (s *Service) createWithLinks(ctx context.Context, c *store.Container, links []string) (*store.Container, error) {
	c.Status = store.ContainerPending
	c.TotalLinks = len(links)
	c.Extra.Populating = c.TotalLinks > 0
	if err := s.store.CreateContainer(ctx, c); err != nil {
		return nil, err
	}
	ctx = services.WithContainerID(ctx, c.ID)

	// Reconcile leaves populating rows alone, so the container lock is only
	// needed for the final write.
	logger := s.log(ctx, c)
	for _, link := range links {
		d, err := s.downloads.Submit(ctx, downloads.SubmitRequest{
			URL:          link,
			ContainerID:  &c.ID,
			CredentialID: c.CredentialID,
		})
		if err != nil {
			c.FailedLinks++
			logging.WarnWithContext(logger, "download could not be recorded", "container_link_failed",
				logging.String(logging.FieldURL, link),
				logging.Error(err),
				logging.String(logging.FieldImpact, "link counted as failed"),
			)
			continue
		}
		logger.Debug("download added to container", logging.Int64(logging.FieldDownloadID, d.ID))
	}

	unlock := s.locks.Lock(lockKey(c.ID))
	defer unlock()

	c.Extra.Populating = false
	if c.TotalLinks > 0 {
		c.Status = store.ContainerActive
	} else {
		c.Status = store.ContainerFailed
		c.Description = "No links found"
	}
	if err := s.store.UpdateContainer(ctx, c); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, services.NotFound("container", c.ID)
		}
		return nil, err
	}
	logger.Info("container created",
		logging.String("name", c.Name),
		logging.String("source", c.Source),
		logging.Int("links", c.TotalLinks),
		logging.Int("failed_links", c.FailedLinks),
		logging.String("status", string(c.Status)),
	)
	return c, nil
}

// Get loads a container with its status recomputed from member downloads.
func (s *Service) Get(ctx context.Context, id int64) (*store.Container, error) {
	return s.Reconcile(ctx, id)
}

// Members returns the downloads belonging to a container.
func (s *Service) Members(ctx context.Context, id int64) ([]*store.Download, error) {
	c, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, services.NotFound("container", id)
	}
	return s.store.DownloadsByContainer(ctx, id)
}

// ListOptions narrows List results.
type ListOptions struct {
	Statuses []store.ContainerStatus
	Limit    int
	Offset   int
}

// List returns containers newest first. Active and pending rows are
// recomputed before being returned.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*store.Container, error) {
	rows, err := s.store.ListContainers(ctx, store.ContainerFilter{
		Statuses: opts.Statuses,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		return nil, err
	}
	for i, c := range rows {
		if c.Status != store.ContainerActive && c.Status != store.ContainerPending {
			continue
		}
		fresh, err := s.Reconcile(ctx, c.ID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rows[i] = fresh
	}
	return rows, nil
}

// Delete removes member transfers from the engine on a best-effort basis and
// then deletes the container with its downloads. Containers still being
// created are refused with a conflict.
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(lockKey(id))
	defer unlock()

	c, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return services.NotFound("container", id)
	}
	if c.Extra.Populating && time.Now().Before(s.populatingDeadline(c)) {
		return services.Wrap(services.ErrConflict, "containers", "delete", "container is still being created", nil)
	}
	members, err := s.store.DownloadsByContainer(ctx, id)
	if err != nil {
		return err
	}
	logger := s.log(ctx, c)
	for _, d := range members {
		if err := s.downloads.Delete(ctx, d.ID); err != nil && !errors.Is(err, services.ErrNotFound) {
			logger.Debug("member delete failed; cascade will remove it", logging.Int64(logging.FieldDownloadID, d.ID), logging.Error(err))
		}
	}
	if err := s.store.DeleteContainer(ctx, id); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return services.NotFound("container", id)
		}
		return err
	}
	logger.Info("container deleted", logging.Int("members", len(members)))
	return nil
}

func folderFor(custom, name string) string {
	if strings.TrimSpace(custom) != "" {
		return textutil.FolderName(custom)
	}
	return textutil.FolderName(name)
}

func validateURL(raw string) error {
	if raw == "" {
		return services.Wrap(services.ErrValidation, "containers", "create", "url is required", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "containers", "create", "url must be an absolute http(s) URL", nil)
	}
	return nil
}
