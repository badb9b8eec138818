package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"linkhaul/internal/config"
)

const userAgent = "linkhaul/0.1"

// Event identifies a notification type.
type Event string

const (
	EventContainerCompleted Event = "container_completed"
	EventContainerFailed    Event = "container_failed"
	EventContainerGated     Event = "container_gated"
	EventTestNotification   Event = "test"
)

// Payload carries event fields. Keys are event specific: name, total,
// completed, failed, reason.
type Payload map[string]any

// Service publishes container outcomes.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed notifier, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotificationTimeout()},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unsupported notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	name := strings.TrimSpace(stringValue(payload, "name"))
	if name == "" {
		name = "container"
	}
	total := intValue(payload, "total")
	switch event {
	case EventContainerCompleted:
		return message{
			title: "linkhaul - Container Complete",
			body:  fmt.Sprintf("✅ %s: %d/%d files downloaded", name, intValue(payload, "completed"), total),
			tags:  []string{"linkhaul", "container", "completed"},
		}, true
	case EventContainerFailed:
		return message{
			title:    "linkhaul - Container Failed",
			body:     fmt.Sprintf("❌ %s: %d of %d downloads failed", name, intValue(payload, "failed"), total),
			tags:     []string{"linkhaul", "container", "failed"},
			priority: "high",
		}, true
	case EventContainerGated:
		body := fmt.Sprintf("🔒 %s needs attention", name)
		if reason := strings.TrimSpace(stringValue(payload, "reason")); reason != "" {
			body = fmt.Sprintf("%s: %s", body, reason)
		}
		return message{
			title: "linkhaul - Input Required",
			body:  body,
			tags:  []string{"linkhaul", "container", "gated"},
		}, true
	case EventTestNotification:
		return message{
			title:    "linkhaul - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"linkhaul", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func intValue(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
