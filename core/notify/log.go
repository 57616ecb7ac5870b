package notify

import (
	"context"

	"github.com/kilianp07/fleetassign/core/logger"
)

// LogNotifier writes notifications to a logger. Useful when no messaging
// backend is configured.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Debugw(n.Message, map[string]any{
		"recipient": n.Recipient,
		"kind":      string(n.Kind),
		"order_id":  n.OrderID,
	})
	l.log.Infof("notify %s: %s", n.Recipient, n.Message)
	return nil
}
