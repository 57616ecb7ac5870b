package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	coremqtt "github.com/kilianp07/fleetassign/core/mqtt"
	"github.com/kilianp07/fleetassign/core/notify"
)

// Notifier publishes notifications as JSON on
// "<prefix>/<recipient>/<kind>".
type Notifier struct {
	pub    coremqtt.Publisher
	prefix string
}

// NewNotifier wraps a publisher. An empty prefix defaults to "fleet".
func NewNotifier(pub coremqtt.Publisher, prefix string) *Notifier {
	if prefix == "" {
		prefix = "fleet"
	}
	return &Notifier{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// Topic returns the topic a notification is published on.
func (n *Notifier) Topic(msg notify.Notification) string {
	return fmt.Sprintf("%s/%s/%s", n.prefix, msg.Recipient, msg.Kind)
}

func (n *Notifier) Notify(ctx context.Context, msg notify.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, n.Topic(msg), payload)
}
