package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"linkhaul/internal/config"
	"linkhaul/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventContainerCompleted, notifications.Payload{"name": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title, body, tags, priority string
}

type recorder struct {
	mu   sync.Mutex
	reqs []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.reqs...)
}

func newTopicServer(t *testing.T, status int) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.reqs = append(rec.reqs, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "container completed",
			event:         notifications.EventContainerCompleted,
			payload:       notifications.Payload{"name": "Show S01", "total": 4, "completed": 4},
			expectTitle:   "linkhaul - Container Complete",
			expectMessage: "✅ Show S01: 4/4 files downloaded",
			expectTags:    "linkhaul,container,completed",
		},
		{
			name:           "container failed",
			event:          notifications.EventContainerFailed,
			payload:        notifications.Payload{"name": "Show S01", "total": 4, "failed": 1},
			expectTitle:    "linkhaul - Container Failed",
			expectMessage:  "❌ Show S01: 1 of 4 downloads failed",
			expectTags:     "linkhaul,container,failed",
			expectPriority: "high",
		},
		{
			name:          "container gated",
			event:         notifications.EventContainerGated,
			payload:       notifications.Payload{"name": "Locked", "reason": "Password required"},
			expectTitle:   "linkhaul - Input Required",
			expectMessage: "🔒 Locked needs attention: Password required",
			expectTags:    "linkhaul,container,gated",
		},
		{
			name:           "test",
			event:          notifications.EventTestNotification,
			expectTitle:    "linkhaul - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "linkhaul,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newTopicServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL + "/topic"
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
			reqs := got.all()
			if len(reqs) != 1 {
				t.Fatalf("expected one request, got %d", len(reqs))
			}
			req := reqs[0]
			if req.title != tc.expectTitle || req.body != tc.expectMessage || req.tags != tc.expectTags || req.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newTopicServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTestNotification, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatalf("expected unsupported event error")
	}
}
