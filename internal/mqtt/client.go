package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const resubscribeTimeout = 5 * time.Second

type ClientOptions struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	Clean     bool
	KeepAlive int
}

type Client struct {
	c    mqtt.Client
	opts *mqtt.ClientOptions
	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	topic   string
	qos     byte
	handler Handler
}

// Handler receives one broker message. Handlers may run concurrently.
type Handler func(m mqtt.Message)

func NewClient(o ClientOptions) (*Client, error) {
	if o.Broker == "" {
		return nil, errors.New("broker required")
	}
	broker := o.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions().AddBroker(broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(o.Clean)
	if o.KeepAlive <= 0 {
		o.KeepAlive = 30
	}
	opts.SetKeepAlive(time.Duration(o.KeepAlive) * time.Second)
	// Each message gets its own goroutine; the worker pool bounds them.
	opts.SetOrderMatters(false)

	cl := &Client{opts: opts}

	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mc mqtt.Client) {
		log.Info().Str("broker", broker).Str("client_id", o.ClientID).Msg("connected to broker")
		cl.resubscribeAll(mc)
	})
	opts.SetConnectionLostHandler(func(mc mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", broker).Str("client_id", o.ClientID).Msg("broker connection lost, reconnecting")
	})

	cl.c = mqtt.NewClient(opts)
	return cl, nil
}

func (c *Client) Connect(ctx context.Context) error {
	return wait(ctx, c.c.Connect())
}

func (c *Client) Disconnect() {
	if c.c != nil && c.c.IsConnectionOpen() {
		c.c.Disconnect(250)
	}
}

// Subscribe registers handler for topic, replacing any earlier handler for
// the same topic. The subscription is restored after every reconnect, even
// when the initial request fails.
func (c *Client) Subscribe(ctx context.Context, topic string, qos byte, handler Handler) error {
	c.remember(subscription{topic: topic, qos: qos, handler: handler})
	if err := wait(ctx, c.c.Subscribe(topic, qos, callback(handler))); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("device events subscription rejected by broker")
		return err
	}
	log.Info().Str("topic", topic).Uint8("qos", qos).Msg("listening for device events")
	return nil
}

// Unsubscribe drops topic so no further messages are delivered for it.
func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	kept := c.subs[:0]
	for _, s := range c.subs {
		if s.topic != topic {
			kept = append(kept, s)
		}
	}
	c.subs = kept
	c.mu.Unlock()
	return wait(ctx, c.c.Unsubscribe(topic))
}

func (c *Client) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	return wait(ctx, c.c.Publish(topic, qos, retain, payload))
}

func (c *Client) remember(sub subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.topic == sub.topic {
			c.subs[i] = sub
			return
		}
	}
	c.subs = append(c.subs, sub)
}

func (c *Client) subscriptions() []subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]subscription, len(c.subs))
	copy(out, c.subs)
	return out
}

// resubscribeAll runs on the paho connect callback, so each request is
// bounded rather than tied to a caller context.
func (c *Client) resubscribeAll(mc mqtt.Client) {
	subs := c.subscriptions()
	if len(subs) == 0 {
		return
	}
	restored := 0
	for _, s := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), resubscribeTimeout)
		err := wait(ctx, mc.Subscribe(s.topic, s.qos, callback(s.handler)))
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("topic", s.topic).Msg("device events not restored after reconnect")
			continue
		}
		restored++
	}
	log.Info().Int("restored", restored).Int("total", len(subs)).Msg("device events subscriptions restored")
}

func callback(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) { h(m) }
}

// wait polls token until it completes or ctx is done.
func wait(ctx context.Context, t mqtt.Token) error {
	for {
		if t.WaitTimeout(100 * time.Millisecond) {
			return t.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
