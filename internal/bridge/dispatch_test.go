package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"weather-bridge/internal/bridge"
	"weather-bridge/internal/weather"
	"weather-bridge/internal/worker"
)

func TestDispatchWaitsForHandler(t *testing.T) {
	h, wm, pm := newHandler(bridge.AckOnReceipt)
	wm.On("Current", mock.Anything, 1.0, 2.0).
		After(20*time.Millisecond).
		Return(weather.Snapshot{Status: "Clear", TemperatureC: 1}, nil)
	pm.On("PushConfig", mock.Anything, addrD1, []byte("Clear;1.0")).Return(nil)

	pool := worker.NewPool(2, 2)
	deliver := bridge.Dispatch(pool, h, zerolog.Nop())

	var s settlement
	deliver(context.Background(), s.message("1;2", locationAttrs()))
	pm.AssertNumberOfCalls(t, "PushConfig", 1)
	require.NoError(t, pool.Close(context.Background()))
}

func TestDispatchDetachesFromCancellation(t *testing.T) {
	h, wm, pm := newHandler(bridge.AckOnReceipt)
	var seen context.Context
	wm.On("Current", mock.Anything, 1.0, 2.0).
		Run(func(args mock.Arguments) { seen = args.Get(0).(context.Context) }).
		Return(weather.Snapshot{Status: "Clear", TemperatureC: 1}, nil)
	pm.On("PushConfig", mock.Anything, addrD1, []byte("Clear;1.0")).Return(nil)

	pool := worker.NewPool(1, 1)
	defer pool.Close(context.Background())
	deliver := bridge.Dispatch(pool, h, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var s settlement
	deliver(ctx, s.message("1;2", locationAttrs()))
	cancel()

	require.NotNil(t, seen)
	assert.NoError(t, seen.Err())
}

func TestDispatchNacksWhenPoolClosed(t *testing.T) {
	h, wm, _ := newHandler(bridge.AckAfterProcessing)
	pool := worker.NewPool(1, 1)
	require.NoError(t, pool.Close(context.Background()))

	var s settlement
	bridge.Dispatch(pool, h, zerolog.Nop())(context.Background(), s.message("1;2", locationAttrs()))

	assert.Equal(t, 1, s.nacks)
	wm.AssertNotCalled(t, "Current", mock.Anything, mock.Anything, mock.Anything)
}
