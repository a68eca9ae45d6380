// Package pubsub receives location updates from a Google Cloud Pub/Sub
// subscription.
package pubsub

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"weather-bridge/internal/bridge"
)

type SourceOptions struct {
	ProjectID string
	// SubscriptionID is a bare id or a full
	// "projects/{project}/subscriptions/{id}" name.
	SubscriptionID         string
	MaxOutstandingMessages int
	CredentialsFile        string
}

type Source struct {
	client *pubsub.Client
	sub    *pubsub.Subscription
}

func NewSource(ctx context.Context, o SourceOptions, opts ...option.ClientOption) (*Source, error) {
	project, id := splitSubscription(o.ProjectID, o.SubscriptionID)
	if project == "" || id == "" {
		return nil, errors.New("pubsub project and subscription required")
	}
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, err
	}
	sub := client.Subscription(id)
	if o.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = o.MaxOutstandingMessages
	}
	return &Source{client: client, sub: sub}, nil
}

// Receive delivers messages until ctx is cancelled. It returns once every
// outstanding deliver call has returned.
func (s *Source) Receive(ctx context.Context, deliver bridge.Deliver) error {
	log.Info().Str("subscription", s.sub.String()).Msg("pubsub receive start")
	err := s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		deliver(ctx, bridge.NewMessage(m.ID, m.Data, m.Attributes, m.PublishTime, m.Ack, m.Nack))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("subscription", s.sub.String()).Msg("pubsub receive stopped")
		return err
	}
	log.Info().Str("subscription", s.sub.String()).Msg("pubsub receive stopped")
	return nil
}

func (s *Source) Close() error {
	return s.client.Close()
}

func splitSubscription(project, sub string) (string, string) {
	parts := strings.Split(sub, "/")
	if len(parts) == 4 && parts[0] == "projects" && parts[2] == "subscriptions" {
		return parts[1], parts[3]
	}
	return project, sub
}
