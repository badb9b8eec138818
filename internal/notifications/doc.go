// Package notifications delivers container outcomes to ntfy.
//
// The topic comes from notifications.ntfy_topic; without one NewService
// returns a no-op. Callers publish an Event with a loose Payload and treat
// delivery failures as warnings.
package notifications
