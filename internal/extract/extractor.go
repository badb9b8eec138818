package extract

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"linkhaul/internal/config"
	"linkhaul/internal/logging"
)

const (
	defaultPageTimeout     = 30 * time.Second
	defaultRedirectTimeout = 10 * time.Second
)

// Option customizes an Extractor.
type Option func(*options)

type options struct {
	client *http.Client
	logger *slog.Logger
}

// WithHTTPClient overrides the HTTP client used for page and HEAD requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Extractor turns container page URLs into download links.
type Extractor struct {
	registry        *Registry
	fetcher         *Fetcher
	hosters         []string
	pageTimeout     time.Duration
	redirectTimeout time.Duration
	logger          *slog.Logger
}

// New builds an extractor with the filecrypt strategy registered and the
// generic strategy as fallback.
func New(cfg config.Extract, opts ...Option) *Extractor {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.NewComponentLogger(o.logger, "extract")

	fetcher := NewFetcher(o.client, cfg.UserAgent, cfg.RequestsPerSecond)
	hosters := make([]string, 0, len(cfg.Hosters))
	for _, h := range cfg.Hosters {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosters = append(hosters, h)
		}
	}

	pageTimeout := time.Duration(cfg.PageTimeoutSeconds) * time.Second
	if pageTimeout <= 0 {
		pageTimeout = defaultPageTimeout
	}
	redirectTimeout := time.Duration(cfg.RedirectTimeoutSeconds) * time.Second
	if redirectTimeout <= 0 {
		redirectTimeout = defaultRedirectTimeout
	}

	generic := &genericStrategy{fetcher: fetcher, hosters: hosters, logger: logger}
	registry := NewRegistry(generic, newFilecryptStrategy(cfg, fetcher, logger))

	return &Extractor{
		registry:        registry,
		fetcher:         fetcher,
		hosters:         hosters,
		pageTimeout:     pageTimeout,
		redirectTimeout: redirectTimeout,
		logger:          logger,
	}
}

// Registry exposes the strategy registry so callers can add site handlers.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Fetcher returns the shared page fetcher.
func (e *Extractor) Fetcher() *Fetcher {
	return e.fetcher
}

// Extract fetches containerURL and returns its links plus gate metadata.
// Errors are *FetchError or *ParseError.
func (e *Extractor) Extract(ctx context.Context, containerURL, password string) (*Result, error) {
	target, err := parseTarget(containerURL)
	if err != nil {
		return nil, err
	}
	strategy := e.registry.Lookup(target.Hostname())

	ctx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	logger := logging.WithContext(ctx, e.logger)
	start := time.Now()
	result, err := strategy.Extract(ctx, target, password)
	if err != nil {
		logging.WarnWithContext(logger, "container extraction failed", "extract_failed",
			logging.String(logging.FieldURL, containerURL),
			logging.String("strategy", strategy.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the container URL is reachable"),
			logging.String(logging.FieldImpact, "container was not created"),
		)
		return nil, err
	}
	logger.Info("container extracted",
		logging.String(logging.FieldURL, result.URL),
		logging.String("strategy", strategy.Name()),
		logging.String("name", result.Name),
		logging.Int("links", result.TotalLinks()),
		logging.Bool("requires_password", result.RequiresPassword),
		logging.Bool("requires_captcha", result.RequiresCaptcha),
		logging.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// ResolveRedirect follows link with a HEAD request. ok is true only when the
// final host belongs to a known hoster; an unknown host is reported as
// unresolved with a nil error.
func (e *Extractor) ResolveRedirect(ctx context.Context, link string) (string, bool, error) {
	if _, err := parseTarget(link); err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.redirectTimeout)
	defer cancel()

	final, status, err := e.fetcher.Head(ctx, link)
	if err != nil {
		return "", false, err
	}
	if status < 200 || status > 299 {
		return "", false, &FetchError{URL: link, StatusCode: status}
	}
	if !matchesHoster(final.Hostname(), e.hosters) {
		e.logger.Debug("redirect target not an allowed hoster",
			logging.String(logging.FieldURL, link),
			logging.String("final_url", final.String()),
		)
		return "", false, nil
	}
	return final.String(), true, nil
}

// IsRedirectLink reports whether link is a synthesized /Link/ redirect that
// ResolveRedirect can expand.
func IsRedirectLink(link string) bool {
	return redirectHref.MatchString(link)
}

func parseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	target, err := url.Parse(raw)
	if err != nil {
		return nil, &ParseError{URL: raw, Reason: "invalid url", Err: err}
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, &ParseError{URL: raw, Reason: "url must use http or https"}
	}
	if target.Host == "" {
		return nil, &ParseError{URL: raw, Reason: "url has no host"}
	}
	return target, nil
}
