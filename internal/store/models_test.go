package store

import "testing"

func TestDownloadTransitions(t *testing.T) {
	cases := []struct {
		from, to DownloadStatus
		ok       bool
	}{
		{DownloadPending, DownloadQueued, true},
		{DownloadPending, DownloadFailed, true},
		{DownloadQueued, DownloadDownloading, true},
		{DownloadDownloading, DownloadPaused, true},
		{DownloadPaused, DownloadDownloading, true},
		{DownloadDownloading, DownloadCompleted, true},
		{DownloadFailed, DownloadQueued, true},
		{DownloadCompleted, DownloadQueued, false},
		{DownloadCancelled, DownloadQueued, false},
		{DownloadPaused, DownloadQueued, false},
		{DownloadFailed, DownloadCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransitionDownload(tc.from, tc.to); got != tc.ok {
			t.Fatalf("CanTransitionDownload(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
	for _, status := range AllDownloadStatuses() {
		if status.IsTerminal() && len(downloadTransitions[status]) != 0 {
			t.Fatalf("terminal status %s must have no outgoing transitions", status)
		}
	}
}

func TestParseStatuses(t *testing.T) {
	if s, ok := ParseDownloadStatus("downloading"); !ok || s != DownloadDownloading {
		t.Fatalf("unexpected parse result %q %v", s, ok)
	}
	if _, ok := ParseDownloadStatus("DOWNLOADING"); ok {
		t.Fatal("status parsing is case sensitive")
	}
	if s, ok := ParseContainerStatus("pending_captcha"); !ok || !s.NeedsInput() {
		t.Fatalf("unexpected container parse %q %v", s, ok)
	}
	if ContainerActive.NeedsInput() {
		t.Fatal("active container does not need input")
	}
}

func TestDownloadCloneIsDeep(t *testing.T) {
	id := int64(3)
	d := &Download{ID: 1, ContainerID: &id}
	cp := d.Clone()
	*cp.ContainerID = 9
	if *d.ContainerID != 3 {
		t.Fatal("clone shares container id pointer")
	}
	if (*Download)(nil).Clone() != nil {
		t.Fatal("nil clone must be nil")
	}
}
