package notify

import "context"

// Notifier delivers best-effort user notifications. Delivery is
// fire-and-forget: callers log failures and never retry or roll back on them.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// UserSubject is the per-user bus subject notifications are published on and
// the WebSocket bridge subscribes to.
func UserSubject(userID string) string {
	return "user." + userID + ".notifications"
}
