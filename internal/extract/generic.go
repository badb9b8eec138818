package extract

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"linkhaul/internal/logging"
)

const defaultGenericName = "Generic Container"

// genericStrategy collects direct hoster links from any page.
type genericStrategy struct {
	fetcher *Fetcher
	hosters []string
	logger  *slog.Logger
}

func (s *genericStrategy) Name() string { return SourceGeneric }

func (s *genericStrategy) Matches(string) bool { return true }

func (s *genericStrategy) Extract(ctx context.Context, target *url.URL, _ string) (*Result, error) {
	page, err := s.fetcher.Get(ctx, target.String())
	if err != nil {
		return nil, err
	}

	var links []string
	for _, n := range elements(page.Doc, "a") {
		href, ok := attr(n, "href")
		href = strings.TrimSpace(href)
		if !ok || !isAbsoluteHTTP(href) {
			continue
		}
		parsed, err := url.Parse(href)
		if err != nil {
			continue
		}
		if matchesHoster(parsed.Hostname(), s.hosters) {
			links = append(links, href)
		}
	}

	name := pageTitle(page.Doc, "title")
	if name == "" {
		name = defaultGenericName
	}
	result := &Result{
		Source: SourceGeneric,
		URL:    target.String(),
		Name:   name,
		Links:  uniqueSorted(links),
	}
	s.logger.Debug("generic discovery complete",
		logging.String(logging.FieldURL, result.URL),
		logging.Int("links", len(result.Links)),
	)
	return result, nil
}

func matchesHoster(host string, hosters []string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, hoster := range hosters {
		if hoster != "" && strings.Contains(host, hoster) {
			return true
		}
	}
	return false
}
