package iotcore

import (
	"context"
	"net"
	"sync"
	"testing"

	"cloud.google.com/go/iot/apiv1/iotpb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"weather-bridge/internal/device"
)

type fakeDeviceManager struct {
	iotpb.UnimplementedDeviceManagerServer

	mu       sync.Mutex
	requests []*iotpb.ModifyCloudToDeviceConfigRequest
	err      error
}

func (f *fakeDeviceManager) ModifyCloudToDeviceConfig(_ context.Context, req *iotpb.ModifyCloudToDeviceConfigRequest) (*iotpb.DeviceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &iotpb.DeviceConfig{Version: int64(len(f.requests)), BinaryData: req.GetBinaryData()}, nil
}

func startServer(t *testing.T, fake *fakeDeviceManager) *Pusher {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	iotpb.RegisterDeviceManagerServer(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	p, err := NewPusher(context.Background(), Options{Endpoint: lis.Addr().String()}, zerolog.Nop(),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPushConfig(t *testing.T) {
	fake := &fakeDeviceManager{}
	p := startServer(t, fake)

	addr := device.Address{ProjectID: "p1", RegistryLocation: "us-central1", RegistryID: "r1", DeviceID: "d1"}
	require.NoError(t, p.PushConfig(context.Background(), addr, []byte("Clear;25.0")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "projects/p1/locations/us-central1/registries/r1/devices/d1", fake.requests[0].GetName())
	assert.Equal(t, []byte("Clear;25.0"), fake.requests[0].GetBinaryData())
	assert.Zero(t, fake.requests[0].GetVersionToUpdate())
}

func TestPushConfigError(t *testing.T) {
	fake := &fakeDeviceManager{err: status.Error(codes.NotFound, "device not found")}
	p := startServer(t, fake)

	err := p.PushConfig(context.Background(), device.Address{ProjectID: "p", RegistryLocation: "l", RegistryID: "r", DeviceID: "missing"}, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
