package mqtt

import "context"

// Publisher sends raw payloads to an MQTT topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
