// internal/service/notify/nats.go

package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"proximate/internal/domain/notify"
)

// NATSNotifier publishes user notifications onto the event bus, where the
// WebSocket bridge fans them out to connected clients.
type NATSNotifier struct {
	conn *nats.Conn
}

var _ notify.Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier creates a notifier on an established connection.
func NewNATSNotifier(conn *nats.Conn) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func (n *NATSNotifier) Notify(_ context.Context, userID, message string) error {
	payload := fmt.Sprintf(`{"type":"notification","userId":%q,"message":%q,"time":%q}`,
		userID, message, time.Now().Format(time.RFC3339))
	if err := n.conn.Publish(notify.UserSubject(userID), []byte(payload)); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the process log. It stands in when no
// event bus is configured.
type LogNotifier struct{}

var _ notify.Notifier = LogNotifier{}

func (LogNotifier) Notify(_ context.Context, userID, message string) error {
	log.Printf("Notification for %s: %s", userID, message)
	return nil
}
