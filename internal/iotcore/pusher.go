// Package iotcore pushes desired device configuration through the Cloud IoT
// device manager API.
package iotcore

import (
	"context"

	iot "cloud.google.com/go/iot/apiv1"
	"cloud.google.com/go/iot/apiv1/iotpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"weather-bridge/internal/device"
)

type Options struct {
	// Endpoint overrides the API host, e.g. for a regional endpoint.
	Endpoint        string
	CredentialsFile string
}

type Pusher struct {
	client *iot.DeviceManagerClient
	logger zerolog.Logger
}

func NewPusher(ctx context.Context, o Options, logger zerolog.Logger, opts ...option.ClientOption) (*Pusher, error) {
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	client, err := iot.NewDeviceManagerClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Pusher{client: client, logger: logger}, nil
}

// PushConfig replaces the device's desired configuration with payload. The
// control plane delivers it to the device asynchronously.
func (p *Pusher) PushConfig(ctx context.Context, addr device.Address, payload []byte) error {
	cfg, err := p.client.ModifyCloudToDeviceConfig(ctx, &iotpb.ModifyCloudToDeviceConfigRequest{
		Name:       addr.Name(),
		BinaryData: payload,
	})
	if err != nil {
		return err
	}
	p.logger.Debug().
		Str("device", addr.Name()).
		Int64("version", cfg.GetVersion()).
		Msg("device config updated")
	return nil
}

func (p *Pusher) Close() error {
	return p.client.Close()
}
