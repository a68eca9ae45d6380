package mqtt

import (
	"context"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"weather-bridge/internal/bridge"
	"weather-bridge/internal/device"
)

type subscriber interface {
	Subscribe(ctx context.Context, topic string, qos byte, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
}

// Registry names the registry whose devices publish on the broker. The
// topic only carries the device id, so the rest of the address is fixed.
type Registry struct {
	ProjectID string
	Location  string
	ID        string
}

// Source turns device events published on a broker into bridge messages
// with the same attributes a cloud registry attaches.
type Source struct {
	sub      subscriber
	topic    string
	qos      byte
	registry Registry
}

func NewSource(client *Client, topic string, qos byte, registry Registry) *Source {
	return &Source{sub: client, topic: topic, qos: qos, registry: registry}
}

// Receive subscribes and delivers messages until ctx is cancelled, then
// unsubscribes and waits for in-flight deliveries.
func (s *Source) Receive(ctx context.Context, deliver bridge.Deliver) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		stopped bool
	)
	handler := func(m mqtt.Message) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		wg.Add(1)
		mu.Unlock()
		defer wg.Done()
		deliver(ctx, s.toMessage(m))
	}
	if err := s.sub.Subscribe(ctx, s.topic, s.qos, handler); err != nil {
		return err
	}
	<-ctx.Done()

	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sub.Unsubscribe(uctx, s.topic); err != nil {
		log.Warn().Err(err).Str("topic", s.topic).Msg("mqtt unsubscribe failed")
	}
	mu.Lock()
	stopped = true
	mu.Unlock()
	wg.Wait()
	log.Info().Str("topic", s.topic).Msg("mqtt receive stopped")
	return nil
}

func (s *Source) toMessage(m mqtt.Message) bridge.Message {
	attrs := map[string]string{
		device.AttrProjectID:        s.registry.ProjectID,
		device.AttrRegistryLocation: s.registry.Location,
		device.AttrRegistryID:       s.registry.ID,
	}
	if deviceID, subFolder, ok := ParseEventsTopic(m.Topic()); ok {
		attrs[device.AttrDeviceID] = deviceID
		attrs[bridge.AttrSubFolder] = subFolder
	} else {
		log.Debug().Str("topic", m.Topic()).Msg("mqtt message outside device events")
	}
	id := strconv.FormatUint(uint64(m.MessageID()), 10)
	return bridge.NewMessage(id, m.Payload(), attrs, time.Now(), m.Ack, nil)
}
