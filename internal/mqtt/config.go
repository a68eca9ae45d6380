package mqtt

import (
	"context"

	"weather-bridge/internal/device"
)

type publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
}

// ConfigPublisher delivers desired configs straight to devices over the
// broker. Retained publishes let a reconnecting device pick up its latest
// config.
type ConfigPublisher struct {
	pub    publisher
	qos    byte
	retain bool
}

func NewConfigPublisher(client *Client, qos byte, retain bool) *ConfigPublisher {
	return &ConfigPublisher{pub: client, qos: qos, retain: retain}
}

func (p *ConfigPublisher) PushConfig(ctx context.Context, addr device.Address, payload []byte) error {
	return p.pub.Publish(ctx, ConfigTopic(addr.DeviceID), p.qos, p.retain, payload)
}
