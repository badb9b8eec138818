package containers

import (
	"context"

	"linkhaul/internal/logging"
	"linkhaul/internal/notifications"
	"linkhaul/internal/store"
)

// notify publishes a container outcome. Delivery failures are logged only.
func (s *Service) notify(ctx context.Context, c *store.Container, event notifications.Event, extra notifications.Payload) {
	payload := notifications.Payload{
		"name":      c.Name,
		"total":     c.TotalLinks,
		"completed": c.CompletedLinks,
		"failed":    c.FailedLinks,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(s.log(ctx, c), "notification delivery failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "container outcome was not announced"),
		)
	}
}
