// Package notify registers the notification sinks available from
// configuration: log, mqtt and redis.
package notify

import (
	"github.com/kilianp07/fleetassign/core/factory"
	corenotify "github.com/kilianp07/fleetassign/core/notify"
	"github.com/kilianp07/fleetassign/infra/logger"
	"github.com/kilianp07/fleetassign/infra/mqtt"
)

// MQTTConfig embeds the client settings; topics are built from its prefix.
type MQTTConfig = mqtt.Config

func init() {
	_ = corenotify.RegisterNotifier("log", func(map[string]any) (corenotify.Notifier, error) {
		return corenotify.NewLogNotifier(logger.New("notify")), nil
	})

	_ = corenotify.RegisterNotifier("mqtt", func(conf map[string]any) (corenotify.Notifier, error) {
		var c MQTTConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		cli, err := mqtt.NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		return mqtt.NewNotifier(cli, c.TopicPrefix), nil
	})

	_ = corenotify.RegisterNotifier("redis", func(conf map[string]any) (corenotify.Notifier, error) {
		var c RedisConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRedisNotifier(c)
	})
}
