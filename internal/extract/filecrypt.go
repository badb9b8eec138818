package extract

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"linkhaul/internal/config"
	"linkhaul/internal/logging"
)

const defaultFilecryptName = "FileCrypt Container"

var (
	mirrorClassPattern = regexp.MustCompile(`(?i)mirror|link`)
	redirectHref       = regexp.MustCompile(`/Link/\w+`)
	cnlScriptPattern   = regexp.MustCompile(`(?i)cnl|jdownloader`)
	cryptedPattern     = regexp.MustCompile(`crypted\s*[:=]\s*["'][^"']+["']`)
	linkListHref       = regexp.MustCompile(`(?i)\.dlc$`)
	mirrorDataAttrs    = []string{"data-href", "data-url", "data-link"}
)

type filecryptStrategy struct {
	fetcher       *Fetcher
	hosts         map[string]struct{}
	baseURL       string
	passwordInput string
	captcha       []config.CaptchaRule
	logger        *slog.Logger
}

func newFilecryptStrategy(cfg config.Extract, fetcher *Fetcher, logger *slog.Logger) *filecryptStrategy {
	hosts := make(map[string]struct{}, len(cfg.FilecryptHosts))
	for _, h := range cfg.FilecryptHosts {
		hosts[normalizeHost(h)] = struct{}{}
	}
	input := strings.TrimSpace(cfg.PasswordInputName)
	if input == "" {
		input = "password"
	}
	return &filecryptStrategy{
		fetcher:       fetcher,
		hosts:         hosts,
		baseURL:       strings.TrimRight(cfg.FilecryptBaseURL, "/"),
		passwordInput: input,
		captcha:       cfg.Captcha,
		logger:        logger,
	}
}

func (s *filecryptStrategy) Name() string { return SourceFilecrypt }

func (s *filecryptStrategy) Matches(host string) bool {
	_, ok := s.hosts[normalizeHost(host)]
	return ok
}

// canonicalURL rewrites short container links to {base}/Container/{ID}.html.
func (s *filecryptStrategy) canonicalURL(target *url.URL) (string, error) {
	if strings.HasSuffix(target.Path, ".html") {
		return target.String(), nil
	}
	segments := strings.Split(strings.TrimRight(target.Path, "/"), "/")
	id := segments[len(segments)-1]
	if i := strings.IndexAny(id, ".?"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", &ParseError{URL: target.String(), Reason: "missing container id"}
	}
	return s.baseURL + "/Container/" + id + ".html", nil
}

func (s *filecryptStrategy) Extract(ctx context.Context, target *url.URL, password string) (*Result, error) {
	canonical, err := s.canonicalURL(target)
	if err != nil {
		return nil, err
	}
	page, err := s.fetcher.Get(ctx, canonical)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Source:   SourceFilecrypt,
		URL:      canonical,
		Name:     pageTitle(page.Doc, "h1", "title"),
		Links:    []string{},
		Password: password,
	}
	if result.Name == "" {
		result.Name = defaultFilecryptName
	}

	if s.hasPasswordInput(page.Doc) && password == "" {
		result.RequiresPassword = true
		s.logger.Info("container requires password", logging.String(logging.FieldURL, canonical))
		return result, nil
	}

	if kind, ok := s.matchCaptcha(page.Doc); ok {
		result.RequiresCaptcha = true
		result.CaptchaType = kind
		result.CaptchaURL = canonical
		s.logger.Info("container requires captcha",
			logging.String(logging.FieldURL, canonical),
			logging.String("captcha_type", kind),
		)
		return result, nil
	}

	var links []string
	links = append(links, mirrorLinks(page.Doc)...)
	links = append(links, buttonLinks(page.Doc, page.URL)...)
	links = append(links, redirectLinks(page.Doc, page.URL)...)
	result.Links = uniqueSorted(links)
	result.EncryptedPayload = hasEncryptedPayload(page.Doc)
	result.LinkListURL = linkListURL(page.Doc, page.URL)

	s.logger.Debug("filecrypt discovery complete",
		logging.String(logging.FieldURL, canonical),
		logging.Int("links", len(result.Links)),
		logging.Bool("cnl", result.EncryptedPayload),
		logging.Bool("dlc", result.LinkListURL != ""),
	)
	return result, nil
}

func (s *filecryptStrategy) hasPasswordInput(doc *html.Node) bool {
	for _, n := range elements(doc, "input") {
		if name, ok := attr(n, "name"); ok && name == s.passwordInput {
			return true
		}
	}
	return false
}

// matchCaptcha applies the configured rules in order; the first hit wins.
func (s *filecryptStrategy) matchCaptcha(doc *html.Node) (string, bool) {
	for _, rule := range s.captcha {
		for _, n := range elements(doc, strings.ToLower(rule.Element)) {
			if rule.Class != "" && !hasClass(n, rule.Class) {
				continue
			}
			if rule.SrcContains != "" {
				src, _ := attr(n, "src")
				if !strings.Contains(src, rule.SrcContains) {
					continue
				}
			}
			return rule.Kind, true
		}
	}
	return "", false
}

func isAbsoluteHTTP(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func mirrorLinks(doc *html.Node) []string {
	var out []string
	for _, n := range elements(doc, "") {
		class, ok := attr(n, "class")
		if !ok || !mirrorClassPattern.MatchString(class) {
			continue
		}
		for _, key := range mirrorDataAttrs {
			if v, ok := attr(n, key); ok && isAbsoluteHTTP(strings.TrimSpace(v)) {
				out = append(out, strings.TrimSpace(v))
			}
		}
	}
	return out
}

// buttonLinks synthesizes /Link/{id}.html redirects from download buttons.
func buttonLinks(doc *html.Node, base *url.URL) []string {
	var out []string
	origin := base.Scheme + "://" + base.Host
	for _, n := range elements(doc, "button") {
		if !hasClass(n, "download") {
			continue
		}
		for _, a := range n.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "data-") && strings.TrimSpace(a.Val) != "" {
				out = append(out, origin+"/Link/"+strings.TrimSpace(a.Val)+".html")
				break
			}
		}
	}
	return out
}

func redirectLinks(doc *html.Node, base *url.URL) []string {
	var out []string
	for _, n := range elements(doc, "a") {
		href, ok := attr(n, "href")
		if !ok || !redirectHref.MatchString(href) {
			continue
		}
		if abs := absolutize(base, href); abs != "" {
			out = append(out, abs)
		}
	}
	return out
}

func hasEncryptedPayload(doc *html.Node) bool {
	for _, n := range elements(doc, "script") {
		body := textContent(n)
		if cnlScriptPattern.MatchString(body) && cryptedPattern.MatchString(body) {
			return true
		}
	}
	return false
}

func linkListURL(doc *html.Node, base *url.URL) string {
	for _, n := range elements(doc, "a") {
		href, ok := attr(n, "href")
		if ok && linkListHref.MatchString(strings.TrimSpace(href)) {
			return absolutize(base, strings.TrimSpace(href))
		}
	}
	return ""
}

func absolutize(base *url.URL, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
