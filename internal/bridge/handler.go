package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"weather-bridge/internal/device"
	"weather-bridge/internal/weather"
)

const (
	DefaultSubFolder = "weather/location"

	// maxLoggedBody caps how much of a rejected payload reaches the logs.
	maxLoggedBody = 256
)

var (
	ErrIgnored          = errors.New("message not addressed to this sub-folder")
	ErrMalformedPayload = errors.New("malformed location payload")
	ErrWeatherLookup    = errors.New("weather lookup failed")
	ErrConfigPush       = errors.New("device config push failed")
)

// AckPolicy decides when a message is settled with the transport.
type AckPolicy int

const (
	// AckOnReceipt acknowledges before processing: at-most-once, a failed
	// lookup or push loses the update.
	AckOnReceipt AckPolicy = iota
	// AckAfterProcessing acknowledges after success or a permanent
	// rejection and nacks transient failures so the transport redelivers.
	AckAfterProcessing
)

// WeatherProvider returns current conditions for a coordinate pair.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (weather.Snapshot, error)
}

// ConfigPusher replaces the desired configuration of a device.
type ConfigPusher interface {
	PushConfig(ctx context.Context, addr device.Address, payload []byte) error
}

// MessageHandler processes one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg Message) error
}

var _ MessageHandler = (*Handler)(nil)

// Handler turns location updates into device weather configs. It keeps no
// state between messages, so a redelivered message is looked up and
// pushed again.
type Handler struct {
	Logger    zerolog.Logger
	Weather   WeatherProvider
	Pusher    ConfigPusher
	SubFolder string
	AckPolicy AckPolicy
}

func (h *Handler) Handle(ctx context.Context, msg Message) error {
	if h.AckPolicy == AckOnReceipt {
		msg.Ack()
	}
	err := h.process(ctx, msg)
	if h.AckPolicy == AckAfterProcessing {
		if transient(err) {
			msg.Nack()
		} else {
			msg.Ack()
		}
	}
	return err
}

func (h *Handler) process(ctx context.Context, msg Message) error {
	subFolder := h.SubFolder
	if subFolder == "" {
		subFolder = DefaultSubFolder
	}
	if got := msg.Attr(AttrSubFolder); got != subFolder {
		h.Logger.Debug().Str("msg_id", msg.ID).Str("subFolder", got).Msg("skipping message for other sub-folder")
		return ErrIgnored
	}

	coords, err := ParseCoordinates(msg.Data)
	if err != nil {
		h.Logger.Warn().Err(err).Str("msg_id", msg.ID).
			Int("body_len", len(msg.Data)).
			Bytes("body", truncate(msg.Data, maxLoggedBody)).
			Msg("dropping malformed location")
		return err
	}

	addr, err := device.FromAttributes(msg.Attributes)
	if err != nil {
		h.Logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("dropping message without device address")
		return err
	}

	snap, err := h.Weather.Current(ctx, coords.Latitude, coords.Longitude)
	if err != nil {
		h.Logger.Error().Err(err).
			Str("msg_id", msg.ID).
			Str("deviceId", addr.DeviceID).
			Float64("lat", coords.Latitude).
			Float64("lon", coords.Longitude).
			Msg("weather lookup failed")
		return fmt.Errorf("%w: %w", ErrWeatherLookup, err)
	}

	payload := snap.Format()
	if err := h.Pusher.PushConfig(ctx, addr, []byte(payload)); err != nil {
		h.Logger.Error().Err(err).
			Str("msg_id", msg.ID).
			Str("device", addr.Name()).
			Str("payload", payload).
			Msg("device config push failed")
		return fmt.Errorf("%w: %w", ErrConfigPush, err)
	}
	h.Logger.Info().Str("msg_id", msg.ID).Str("deviceId", addr.DeviceID).Str("payload", payload).Msg("sent weather config")
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// transient reports whether redelivery could change the outcome.
func transient(err error) bool {
	return errors.Is(err, ErrWeatherLookup) || errors.Is(err, ErrConfigPush)
}

// Outcome labels a Handle result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "pushed"
	case errors.Is(err, ErrIgnored):
		return "ignored"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, device.ErrMissingAttribute):
		return "invalid_attributes"
	case errors.Is(err, ErrWeatherLookup):
		return "weather_error"
	case errors.Is(err, ErrConfigPush):
		return "push_error"
	default:
		return "error"
	}
}
