package containers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"linkhaul/internal/config"
	"linkhaul/internal/containers"
	"linkhaul/internal/downloads"
	"linkhaul/internal/engine"
	"linkhaul/internal/extract"
	"linkhaul/internal/keylock"
	"linkhaul/internal/services"
	"linkhaul/internal/store"
	"linkhaul/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	svc    *containers.Service
	dl     *downloads.Service
	store  *store.Store
	engine *testsupport.FakeEngine
}

func newFixture(t *testing.T, ex containers.Extractor, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	eng := testsupport.NewFakeEngine()
	locks := keylock.New()
	dl := downloads.NewService(cfg, st, eng, downloads.WithLocks(locks))
	if ex == nil {
		ex = extract.New(cfg.Extract)
	}
	return fixture{
		cfg:    cfg,
		svc:    containers.NewService(cfg, st, dl, ex, containers.WithLocks(locks)),
		dl:     dl,
		store:  st,
		engine: eng,
	}
}

// newPageServer serves HTML pages keyed by path.
func newPageServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func filecryptOption(server *httptest.Server) testsupport.ConfigOption {
	parsed, _ := url.Parse(server.URL)
	return testsupport.WithFilecryptServer(server.URL, parsed.Hostname())
}

func completeMember(t *testing.T, f fixture, d *store.Download, path string) {
	t.Helper()
	f.engine.SetState(d.EngineHandle, func(s *engine.Status) {
		s.State = engine.StateComplete
		s.TotalLength = 100
		s.CompletedLength = 100
		s.Files = []engine.File{{Path: path, Length: 100, CompletedLength: 100}}
	})
	if _, err := f.dl.Reconcile(context.Background(), d.ID); err != nil {
		t.Fatalf("download Reconcile failed: %v", err)
	}
}

func TestManualContainerCompletesWhenAllMembersComplete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.svc.CreateManual(ctx, containers.ManualRequest{
		Name: "Season 1",
		URLs: []string{"https://rapidgator.net/file/e01", "https://rapidgator.net/file/e01"},
	})
	if err != nil {
		t.Fatalf("CreateManual failed: %v", err)
	}
	if c.Source != store.SourceManual || c.FolderName != "Season 1" {
		t.Fatalf("unexpected container %+v", c)
	}
	if c.TotalLinks != 2 || c.Status != store.ContainerActive {
		t.Fatalf("duplicates must be kept verbatim, got total=%d status=%s", c.TotalLinks, c.Status)
	}

	members, err := f.svc.Members(ctx, c.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	for _, d := range members {
		transfer, ok := f.engine.Transfer(d.EngineHandle)
		if !ok {
			t.Fatalf("missing engine transfer for %d", d.ID)
		}
		if want := filepath.Join(f.cfg.Paths.IncompleteDir, "Season 1"); transfer.Options["dir"] != want {
			t.Fatalf("expected dir %q, got %q", want, transfer.Options["dir"])
		}
	}

	completeMember(t, f, members[0], "/dl/Season 1/e01.mkv")
	got, err := f.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.ContainerActive || got.CompletedLinks != 1 {
		t.Fatalf("expected active with one completed, got %+v", got)
	}

	completeMember(t, f, members[1], "/dl/Season 1/e01.1.mkv")
	got, err = f.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.ContainerCompleted || got.CompletedLinks != 2 || got.FailedLinks != 0 {
		t.Fatalf("expected completed container, got %+v", got)
	}
}

func TestManualContainerRequiresName(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateManual(context.Background(), containers.ManualRequest{URLs: []string{"https://a"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestManualContainerCustomFolder(t *testing.T) {
	f := newFixture(t, nil)
	c, err := f.svc.CreateManual(context.Background(), containers.ManualRequest{
		Name:   "Show",
		Folder: "Show: Part/1",
		URLs:   []string{"https://rapidgator.net/file/a"},
	})
	if err != nil {
		t.Fatalf("CreateManual failed: %v", err)
	}
	if c.FolderName == "" || c.FolderName == "Show: Part/1" {
		t.Fatalf("expected sanitized folder, got %q", c.FolderName)
	}
}

func TestEmptyContainerFails(t *testing.T) {
	f := newFixture(t, nil)
	c, err := f.svc.CreateManual(context.Background(), containers.ManualRequest{Name: "Nothing"})
	if err != nil {
		t.Fatalf("CreateManual failed: %v", err)
	}
	if c.Status != store.ContainerFailed || c.TotalLinks != 0 {
		t.Fatalf("expected failed empty container, got %+v", c)
	}
	got, err := f.svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.ContainerFailed {
		t.Fatalf("empty container must stay failed, got %s", got.Status)
	}
}

func TestUnrecordedLinksCountAsFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// The blank URL is rejected by the downloads orchestrator and never stored.
	c, err := f.svc.CreateManual(ctx, containers.ManualRequest{
		Name: "Partial",
		URLs: []string{"https://rapidgator.net/file/a", " "},
	})
	if err != nil {
		t.Fatalf("CreateManual failed: %v", err)
	}
	if c.TotalLinks != 2 || c.FailedLinks != 1 {
		t.Fatalf("expected one failed of two, got %+v", c)
	}

	got, err := f.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.ContainerActive || got.FailedLinks != 1 {
		t.Fatalf("expected active with missing member counted failed, got %+v", got)
	}

	members, _ := f.svc.Members(ctx, c.ID)
	completeMember(t, f, members[0], "/dl/Partial/a.bin")
	got, _ = f.svc.Get(ctx, c.ID)
	if got.Status != store.ContainerFailed || got.CompletedLinks != 1 || got.FailedLinks != 1 {
		t.Fatalf("settled container with a failure must be failed, got %+v", got)
	}
}

func TestStatusPrecedence(t *testing.T) {
	cases := []struct {
		name  string
		tally containers.Tally
		want  store.ContainerStatus
	}{
		{"all completed", containers.Tally{Total: 3, Completed: 3}, store.ContainerCompleted},
		{"all failed", containers.Tally{Total: 2, Failed: 2}, store.ContainerFailed},
		{"active wins over failures", containers.Tally{Total: 3, Completed: 1, Failed: 1, Active: 1}, store.ContainerActive},
		{"settled with failure", containers.Tally{Total: 3, Completed: 2, Failed: 1}, store.ContainerFailed},
		{"paused members", containers.Tally{Total: 2, Completed: 1}, store.ContainerPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tally.Resolve(); got != tc.want {
				t.Fatalf("Resolve() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestReconcileFromStoredMembers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := testsupport.NewContainer(t, f.store, &store.Container{
		Name: "Mixed", Source: store.SourceManual, Status: store.ContainerActive, TotalLinks: 3,
	})
	for _, status := range []store.DownloadStatus{store.DownloadCompleted, store.DownloadCompleted, store.DownloadDownloading} {
		testsupport.NewDownload(t, f.store, &store.Download{URL: "https://x/" + string(status), Status: status, ContainerID: &c.ID})
	}

	got, err := f.svc.Reconcile(ctx, c.ID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if got.Status != store.ContainerActive || got.CompletedLinks != 2 {
		t.Fatalf("expected active with 2 completed, got %+v", got)
	}

	members, _ := f.store.DownloadsByContainer(ctx, c.ID)
	for _, d := range members {
		if d.Status == store.DownloadDownloading {
			d.Status = store.DownloadFailed
			if err := f.store.UpdateDownload(ctx, d); err != nil {
				t.Fatalf("UpdateDownload failed: %v", err)
			}
		}
	}
	got, err = f.svc.Reconcile(ctx, c.ID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if got.Status != store.ContainerFailed || got.CompletedLinks != 2 || got.FailedLinks != 1 {
		t.Fatalf("expected failed with 2/1, got %+v", got)
	}
	if got.CompletedLinks+got.FailedLinks > got.TotalLinks {
		t.Fatalf("counters exceed total: %+v", got)
	}
}

func TestCreateFromURLPasswordGate(t *testing.T) {
	page := `<html><head><title>Locked</title></head><body>
<h1>Locked Season</h1>
<form><input type="password" name="password"></form>
</body></html>`
	server := newPageServer(t, map[string]string{"/Container/PW.html": page})
	f := newFixture(t, nil, filecryptOption(server))

	c, err := f.svc.CreateFromURL(context.Background(), containers.CreateRequest{URL: server.URL + "/Container/PW.html"})
	if err != nil {
		t.Fatalf("CreateFromURL failed: %v", err)
	}
	if c.Status != store.ContainerPendingPassword || c.Description != "Password required" {
		t.Fatalf("expected pending_password, got %+v", c)
	}
	if c.TotalLinks != 0 || c.Extra.Gate == nil || c.Extra.Gate.Kind != store.GatePassword {
		t.Fatalf("unexpected gate data %+v", c.Extra)
	}
	if c.Source != extract.SourceFilecrypt || c.Name != "Locked Season" {
		t.Fatalf("unexpected container %+v", c)
	}
	if f.engine.LiveHandles() != 0 {
		t.Fatal("gated container must not submit downloads")
	}

	got, err := f.svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.ContainerPendingPassword {
		t.Fatalf("gated container must not be recomputed, got %s", got.Status)
	}
}

func TestCreateFromURLCaptchaGate(t *testing.T) {
	page := `<html><head><title>Robot Check</title></head><body>
<div class="g-recaptcha" data-sitekey="k"></div>
</body></html>`
	server := newPageServer(t, map[string]string{"/Container/CAP.html": page})
	f := newFixture(t, nil, filecryptOption(server))

	c, err := f.svc.CreateFromURL(context.Background(), containers.CreateRequest{URL: server.URL + "/Container/CAP.html", Name: "Mine"})
	if err != nil {
		t.Fatalf("CreateFromURL failed: %v", err)
	}
	if c.Status != store.ContainerPendingCaptcha || c.Description != "Captcha required: recaptcha_v2" {
		t.Fatalf("expected pending_captcha, got %+v", c)
	}
	if c.Extra.Gate == nil || c.Extra.Gate.CaptchaType != "recaptcha_v2" || c.Extra.Gate.URL == "" {
		t.Fatalf("unexpected gate %+v", c.Extra.Gate)
	}
	if c.Name != "Mine" {
		t.Fatalf("explicit name must win, got %q", c.Name)
	}

	stored, err := f.store.GetContainer(context.Background(), c.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetContainer failed: %v", err)
	}
	if stored.Extra.Gate == nil || stored.Extra.Gate.Kind != store.GateCaptcha {
		t.Fatalf("gate not persisted: %+v", stored.Extra)
	}
}

func TestCreateFromURLGenericPage(t *testing.T) {
	page := `<html><head><title>Release</title></head><body>
<a href="https://rapidgator.net/file/b">b</a>
<a href="https://rapidgator.net/file/a">a</a>
<a href="https://rapidgator.net/file/a">a again</a>
</body></html>`
	server := newPageServer(t, map[string]string{"/post": page})
	f := newFixture(t, nil)

	c, err := f.svc.CreateFromURL(context.Background(), containers.CreateRequest{URL: server.URL + "/post"})
	if err != nil {
		t.Fatalf("CreateFromURL failed: %v", err)
	}
	if c.Source != extract.SourceGeneric || c.Name != "Release" || c.URL != server.URL+"/post" {
		t.Fatalf("unexpected container %+v", c)
	}
	if c.TotalLinks != 2 || c.Status != store.ContainerActive {
		t.Fatalf("expected 2 unique links active, got %+v", c)
	}
	if f.engine.LiveHandles() != 2 {
		t.Fatalf("expected 2 live transfers, got %d", f.engine.LiveHandles())
	}
}

func TestCreateFromURLExtractionFailurePersistsNothing(t *testing.T) {
	server := newPageServer(t, map[string]string{})
	f := newFixture(t, nil, filecryptOption(server))

	_, err := f.svc.CreateFromURL(context.Background(), containers.CreateRequest{URL: server.URL + "/Container/GONE.html"})
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	var fetchErr *extract.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected wrapped 404 fetch error, got %v", err)
	}
	rows, _ := f.store.ListContainers(context.Background(), store.ContainerFilter{})
	if len(rows) != 0 {
		t.Fatalf("expected no containers persisted, got %d", len(rows))
	}
}

func TestCreateFromURLRejectsBadURL(t *testing.T) {
	f := newFixture(t, nil)
	for _, raw := range []string{"", "ftp://host/x", "not a url"} {
		if _, err := f.svc.CreateFromURL(context.Background(), containers.CreateRequest{URL: raw}); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", raw, err)
		}
	}
}

type redirectStub struct {
	result   *extract.Result
	resolved map[string]string
}

func (s redirectStub) Extract(context.Context, string, string) (*extract.Result, error) {
	return s.result, nil
}

func (s redirectStub) ResolveRedirect(_ context.Context, link string) (string, bool, error) {
	target, ok := s.resolved[link]
	if !ok {
		return link, false, errors.New("no redirect")
	}
	return target, true, nil
}

func TestCreateFromURLResolvesRedirects(t *testing.T) {
	stub := redirectStub{
		result: &extract.Result{
			Source: extract.SourceFilecrypt,
			Name:   "Redirects",
			Links: []string{
				"https://filecrypt.cc/Link/aaa.html",
				"https://filecrypt.cc/Link/bbb.html",
				"https://filecrypt.cc/Link/ccc.html",
				"https://rapidgator.net/file/direct",
			},
		},
		resolved: map[string]string{
			"https://filecrypt.cc/Link/aaa.html": "https://rapidgator.net/file/one",
			"https://filecrypt.cc/Link/bbb.html": "https://rapidgator.net/file/one",
		},
	}
	f := newFixture(t, stub, testsupport.WithResolveRedirects(true))

	c, err := f.svc.CreateFromURL(context.Background(), containers.CreateRequest{URL: "https://filecrypt.cc/Container/R.html"})
	if err != nil {
		t.Fatalf("CreateFromURL failed: %v", err)
	}
	// aaa and bbb collapse to one target; ccc stays unresolved.
	if c.TotalLinks != 3 {
		t.Fatalf("expected 3 links after resolution, got %d", c.TotalLinks)
	}
	members, _ := f.svc.Members(context.Background(), c.ID)
	seen := map[string]bool{}
	for _, d := range members {
		seen[d.URL] = true
	}
	for _, want := range []string{"https://rapidgator.net/file/one", "https://filecrypt.cc/Link/ccc.html", "https://rapidgator.net/file/direct"} {
		if !seen[want] {
			t.Fatalf("missing member %q in %v", want, seen)
		}
	}
}

func TestDeleteCascadesAndRemovesTransfers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c, err := f.svc.CreateManual(ctx, containers.ManualRequest{
		Name: "Doomed",
		URLs: []string{"https://rapidgator.net/file/a", "https://rapidgator.net/file/b"},
	})
	if err != nil {
		t.Fatalf("CreateManual failed: %v", err)
	}
	if err := f.svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if f.engine.LiveHandles() != 0 {
		t.Fatalf("expected transfers removed, %d live", f.engine.LiveHandles())
	}
	members, _ := f.store.DownloadsByContainer(ctx, c.ID)
	if len(members) != 0 {
		t.Fatalf("expected members deleted, got %d", len(members))
	}
	if _, err := f.svc.Get(ctx, c.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, c.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestRefreshPullsEngineState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c, _ := f.svc.CreateManual(ctx, containers.ManualRequest{Name: "One", URLs: []string{"https://rapidgator.net/file/a"}})
	members, _ := f.svc.Members(ctx, c.ID)
	f.engine.SetState(members[0].EngineHandle, func(s *engine.Status) {
		s.State = engine.StateComplete
		s.Files = []engine.File{{Path: "/dl/One/a.bin"}}
	})

	got, err := f.svc.Refresh(ctx, c.ID)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got.Status != store.ContainerCompleted {
		t.Fatalf("expected completed after refresh, got %+v", got)
	}
}

func TestSweepAndList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := testsupport.NewContainer(t, f.store, &store.Container{
		Name: "Stale", Source: store.SourceManual, Status: store.ContainerActive, TotalLinks: 1,
	})
	testsupport.NewDownload(t, f.store, &store.Download{URL: "https://x/a", Status: store.DownloadCompleted, ContainerID: &c.ID})

	n, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 container swept, got %d", n)
	}
	rows, err := f.svc.List(ctx, containers.ListOptions{Statuses: []store.ContainerStatus{store.ContainerCompleted}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != c.ID {
		t.Fatalf("expected swept container listed as completed, got %+v", rows)
	}
}
