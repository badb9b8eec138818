package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"linkhaul/internal/store"
	"linkhaul/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	version, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != "001_initial" {
		t.Fatalf("unexpected schema version %q", version)
	}
	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("expected path %q, got %q", cfg.DatabasePath(), st.Path())
	}
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	// Reopening must not reapply migrations.
	st.Close()
	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
}

func TestDownloadRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cred := int64(7)
	d := &store.Download{
		URL:          "https://rapidgator.net/file/a",
		Filename:     "a.mkv",
		ETASeconds:   -1,
		CredentialID: &cred,
	}
	if err := st.CreateDownload(ctx, d); err != nil {
		t.Fatalf("CreateDownload failed: %v", err)
	}
	if d.ID == 0 || d.Status != store.DownloadPending || d.CreatedAt.IsZero() {
		t.Fatalf("expected defaults applied, got %+v", d)
	}

	fetched, err := st.GetDownload(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDownload failed: %v", err)
	}
	if fetched == nil || fetched.URL != d.URL || fetched.Filename != "a.mkv" || fetched.ETASeconds != -1 {
		t.Fatalf("unexpected fetched row %+v", fetched)
	}
	if fetched.CredentialID == nil || *fetched.CredentialID != 7 || fetched.ContainerID != nil {
		t.Fatalf("unexpected foreign keys %+v", fetched)
	}
	if !fetched.CreatedAt.Equal(d.CreatedAt) {
		t.Fatalf("created_at lost precision: %v vs %v", fetched.CreatedAt, d.CreatedAt)
	}

	done := time.Now().UTC()
	fetched.EngineHandle = "2089b05ecca3d829"
	fetched.Status = store.DownloadCompleted
	fetched.Progress = 1
	fetched.TotalBytes = 100
	fetched.DownloadedBytes = 100
	fetched.FilePath = "/dl/a.mkv"
	fetched.CompletedAt = &done
	if err := st.UpdateDownload(ctx, fetched); err != nil {
		t.Fatalf("UpdateDownload failed: %v", err)
	}
	again, _ := st.GetDownload(ctx, d.ID)
	if again.Status != store.DownloadCompleted || again.EngineHandle != "2089b05ecca3d829" || again.FilePath != "/dl/a.mkv" {
		t.Fatalf("update not persisted: %+v", again)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(done) {
		t.Fatalf("completed_at mismatch: %v", again.CompletedAt)
	}
}

func TestCreateDownloadRequiresURL(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := st.CreateDownload(context.Background(), &store.Download{URL: "  "}); err == nil {
		t.Fatal("expected error when url missing")
	}
}

func TestMissingRows(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	d, err := st.GetDownload(ctx, 404)
	if err != nil || d != nil {
		t.Fatalf("expected (nil, nil) for missing download, got %v, %v", d, err)
	}
	c, err := st.GetContainer(ctx, 404)
	if err != nil || c != nil {
		t.Fatalf("expected (nil, nil) for missing container, got %v, %v", c, err)
	}
	if err := st.UpdateDownload(ctx, &store.Download{ID: 404, URL: "https://x"}); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on update, got %v", err)
	}
	if err := st.DeleteDownload(ctx, 404); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on delete, got %v", err)
	}
	if err := st.UpdateContainer(ctx, &store.Container{ID: 404}); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on container update, got %v", err)
	}
	if err := st.DeleteContainer(ctx, 404); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on container delete, got %v", err)
	}
}

func TestListDownloadsOrderingAndFilters(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	c := testsupport.NewContainer(t, st, &store.Container{Name: "C", Source: store.SourceManual, FolderName: "C"})
	statuses := []store.DownloadStatus{store.DownloadQueued, store.DownloadFailed, store.DownloadQueued, store.DownloadCompleted}
	var ids []int64
	for i, status := range statuses {
		d := &store.Download{URL: fmt.Sprintf("https://x/%d", i), Status: status}
		if i%2 == 0 {
			d.ContainerID = &c.ID
		}
		testsupport.NewDownload(t, st, d)
		ids = append(ids, d.ID)
	}

	all, err := st.ListDownloads(ctx, store.DownloadFilter{})
	if err != nil {
		t.Fatalf("ListDownloads failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(all))
	}
	for i := range all {
		if all[i].ID != ids[len(ids)-1-i] {
			t.Fatalf("expected newest first, got order %d at %d", all[i].ID, i)
		}
	}

	queued, _ := st.ListDownloads(ctx, store.DownloadFilter{Statuses: []store.DownloadStatus{store.DownloadQueued}})
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued rows, got %d", len(queued))
	}
	members, _ := st.ListDownloads(ctx, store.DownloadFilter{ContainerID: &c.ID})
	if len(members) != 2 {
		t.Fatalf("expected 2 container rows, got %d", len(members))
	}

	page, _ := st.ListDownloads(ctx, store.DownloadFilter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Fatalf("unexpected page %+v", page)
	}

	byStatus, _ := st.DownloadsByStatus(ctx, store.DownloadQueued, store.DownloadFailed)
	if len(byStatus) != 3 || byStatus[0].ID != ids[0] {
		t.Fatalf("expected oldest-first status query, got %d rows", len(byStatus))
	}

	counts, err := st.CountDownloadsByStatus(ctx)
	if err != nil {
		t.Fatalf("CountDownloadsByStatus failed: %v", err)
	}
	if counts[store.DownloadQueued] != 2 || counts[store.DownloadFailed] != 1 || counts[store.DownloadCompleted] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	memberCounts, _ := st.CountContainerDownloads(ctx, c.ID)
	if memberCounts[store.DownloadQueued] != 2 || len(memberCounts) != 1 {
		t.Fatalf("unexpected container counts %v", memberCounts)
	}
}

func TestContainerExtraAndFixedTotal(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	c := testsupport.NewContainer(t, st, &store.Container{
		Name:        "Locked",
		URL:         "https://filecrypt.cc/Container/ABC.html",
		Source:      "filecrypt",
		FolderName:  "Locked",
		Status:      store.ContainerPendingCaptcha,
		Description: "Captcha required: cutcaptcha",
		Extra: store.Extraction{
			Gate:        &store.Gate{Kind: store.GateCaptcha, CaptchaType: "cutcaptcha", URL: "https://filecrypt.cc/Container/ABC.html"},
			LinkListURL: "https://filecrypt.cc/DLC/ABC.dlc",
		},
		TotalLinks: 4,
	})

	fetched, err := st.GetContainer(ctx, c.ID)
	if err != nil || fetched == nil {
		t.Fatalf("GetContainer failed: %v", err)
	}
	if fetched.Extra.Gate == nil || fetched.Extra.Gate.CaptchaType != "cutcaptcha" || fetched.Extra.LinkListURL == "" {
		t.Fatalf("extra payload lost: %+v", fetched.Extra)
	}
	if fetched.Status != store.ContainerPendingCaptcha || fetched.TotalLinks != 4 {
		t.Fatalf("unexpected container %+v", fetched)
	}

	fetched.TotalLinks = 99
	fetched.CompletedLinks = 2
	fetched.Extra = store.Extraction{}
	if err := st.UpdateContainer(ctx, fetched); err != nil {
		t.Fatalf("UpdateContainer failed: %v", err)
	}
	again, _ := st.GetContainer(ctx, c.ID)
	if again.TotalLinks != 4 {
		t.Fatalf("total_links must not change after creation, got %d", again.TotalLinks)
	}
	if again.CompletedLinks != 2 || !again.Extra.IsZero() {
		t.Fatalf("update not persisted: %+v", again)
	}
}

func TestCreateContainerMemberHonorsTotal(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	c := testsupport.NewContainer(t, st, &store.Container{Name: "Pair", Source: store.SourceManual, FolderName: "Pair", TotalLinks: 2})

	for i := 0; i < 2; i++ {
		d := &store.Download{URL: fmt.Sprintf("https://pair/%d", i), ContainerID: &c.ID, ETASeconds: -1}
		if err := st.CreateContainerMember(ctx, d); err != nil {
			t.Fatalf("member %d: %v", i, err)
		}
		if d.ID == 0 || d.CreatedAt.IsZero() {
			t.Fatalf("member %d not populated: %+v", i, d)
		}
	}
	extra := &store.Download{URL: "https://pair/extra", ContainerID: &c.ID}
	if err := st.CreateContainerMember(ctx, extra); !errors.Is(err, store.ErrContainerFull) {
		t.Fatalf("expected ErrContainerFull, got %v", err)
	}
	if extra.ID != 0 {
		t.Fatalf("rejected member received id %d", extra.ID)
	}

	missing := int64(999)
	orphan := &store.Download{URL: "https://pair/orphan", ContainerID: &missing}
	if err := st.CreateContainerMember(ctx, orphan); !errors.Is(err, store.ErrContainerFull) {
		t.Fatalf("expected ErrContainerFull for unknown container, got %v", err)
	}
	members, _ := st.DownloadsByContainer(ctx, c.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestDeleteContainerRemovesMembers(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	keep := testsupport.NewContainer(t, st, &store.Container{Name: "Keep", Source: store.SourceManual, FolderName: "Keep"})
	drop := testsupport.NewContainer(t, st, &store.Container{Name: "Drop", Source: store.SourceManual, FolderName: "Drop"})
	for i := 0; i < 3; i++ {
		testsupport.NewDownload(t, st, &store.Download{URL: fmt.Sprintf("https://drop/%d", i), ContainerID: &drop.ID})
	}
	survivor := testsupport.NewDownload(t, st, &store.Download{URL: "https://keep/0", ContainerID: &keep.ID})

	if err := st.DeleteContainer(ctx, drop.ID); err != nil {
		t.Fatalf("DeleteContainer failed: %v", err)
	}
	members, _ := st.DownloadsByContainer(ctx, drop.ID)
	if len(members) != 0 {
		t.Fatalf("expected members removed, got %d", len(members))
	}
	if d, _ := st.GetDownload(ctx, survivor.ID); d == nil {
		t.Fatal("unrelated download was removed")
	}
	if c, _ := st.GetContainer(ctx, drop.ID); c != nil {
		t.Fatal("container still present")
	}
}

func TestContainersByStatusAndList(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	statuses := []store.ContainerStatus{store.ContainerActive, store.ContainerCompleted, store.ContainerPending, store.ContainerPendingPassword}
	for i, status := range statuses {
		testsupport.NewContainer(t, st, &store.Container{
			Name: fmt.Sprintf("c%d", i), Source: store.SourceManual, FolderName: fmt.Sprintf("c%d", i), Status: status,
		})
	}

	rows, err := st.ContainersByStatus(ctx, store.ContainerActive, store.ContainerPending)
	if err != nil {
		t.Fatalf("ContainersByStatus failed: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "c0" || rows[1].Name != "c2" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	listed, err := st.ListContainers(ctx, store.ContainerFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListContainers failed: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "c3" || listed[1].Name != "c2" {
		t.Fatalf("expected newest first, got %+v", listed)
	}
	gated, _ := st.ListContainers(ctx, store.ContainerFilter{Statuses: []store.ContainerStatus{store.ContainerPendingPassword}})
	if len(gated) != 1 || !gated[0].Status.NeedsInput() {
		t.Fatalf("unexpected gated rows %+v", gated)
	}
}
