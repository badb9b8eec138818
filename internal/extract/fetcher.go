package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/ratelimit"
	"golang.org/x/net/html"
)

const maxPageBytes = 8 << 20

// Page is a fetched and parsed HTML document.
type Page struct {
	URL  *url.URL
	Doc  *html.Node
	Size int
}

// Fetcher retrieves container pages with a fixed user agent and a shared
// request rate.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   ratelimit.Limiter
}

// NewFetcher builds a fetcher. A requestsPerSecond <= 0 disables limiting.
func NewFetcher(client *http.Client, userAgent string, requestsPerSecond int) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	limiter := ratelimit.NewUnlimited()
	if requestsPerSecond > 0 {
		limiter = ratelimit.New(requestsPerSecond)
	}
	return &Fetcher{client: client, userAgent: userAgent, limiter: limiter}
}

func (f *Fetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Reason: "invalid url", Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	return req, nil
}

func (f *Fetcher) do(req *http.Request) (*http.Response, error) {
	f.limiter.Take()
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(req.Context().Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", time.Since(start).Round(time.Millisecond), context.DeadlineExceeded)
		}
		return nil, &FetchError{URL: req.URL.String(), Err: err}
	}
	return resp, nil
}

// Get fetches rawURL and parses the body as HTML.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return nil, &ParseError{URL: rawURL, Reason: fmt.Sprintf("unexpected content type %q", ct)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: rawURL, Reason: "invalid html", Err: err}
	}

	final := resp.Request.URL
	if final == nil {
		final = req.URL
	}
	return &Page{URL: final, Doc: doc, Size: len(body)}, nil
}

// Head issues a HEAD request, following redirects, and returns the final URL
// and status code.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (*url.URL, int, error) {
	req, err := f.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	final := resp.Request.URL
	if final == nil {
		final = req.URL
	}
	return final, resp.StatusCode, nil
}
