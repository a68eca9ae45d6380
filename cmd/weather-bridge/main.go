package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"weather-bridge/internal/bridge"
	"weather-bridge/internal/config"
	"weather-bridge/internal/httpapi"
	"weather-bridge/internal/iotcore"
	"weather-bridge/internal/logging"
	mqttcli "weather-bridge/internal/mqtt"
	"weather-bridge/internal/pubsub"
	"weather-bridge/internal/weather"
	"weather-bridge/internal/worker"
)

const (
	svcName          = "weather-bridge"
	envConfigFile    = "WB_CONFIG_FILE"
	defaultConfigINI = "configs/config.ini"
)

type source interface {
	Receive(ctx context.Context, deliver bridge.Deliver) error
}

func main() {
	path, ok := os.LookupEnv(envConfigFile)
	if !ok {
		path = defaultConfigINI
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	logger, closeLogger, err := logging.NewLogger(cfg.Logging, svcName)
	if err != nil {
		panic(err)
	}
	defer closeLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var broker *mqttcli.Client
	mqttClient := func() *mqttcli.Client {
		if broker != nil {
			return broker
		}
		c, err := mqttcli.NewClient(mqttcli.ClientOptions{
			Broker:    cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			Clean:     true,
			KeepAlive: cfg.MQTT.KeepAlive,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create mqtt client")
		}
		if err := c.Connect(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect mqtt")
		}
		broker = c
		return c
	}

	var pusher bridge.ConfigPusher
	switch cfg.IoT.Kind {
	case config.PusherMQTT:
		pusher = mqttcli.NewConfigPublisher(mqttClient(), byte(cfg.MQTT.QoS), cfg.MQTT.Retain)
	default:
		p, err := iotcore.NewPusher(ctx, iotcore.Options{
			Endpoint:        cfg.IoT.Endpoint,
			CredentialsFile: cfg.IoT.CredentialsFile,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create iot device manager client")
		}
		defer p.Close()
		pusher = p
	}

	var src source
	switch cfg.Transport.Kind {
	case config.TransportMQTT:
		src = mqttcli.NewSource(mqttClient(), cfg.MQTT.EventsTopic, byte(cfg.MQTT.QoS), mqttcli.Registry{
			ProjectID: cfg.MQTT.ProjectID,
			Location:  cfg.MQTT.RegistryLocation,
			ID:        cfg.MQTT.RegistryID,
		})
	default:
		s, err := pubsub.NewSource(ctx, pubsub.SourceOptions{
			ProjectID:              cfg.PubSub.ProjectID,
			SubscriptionID:         cfg.PubSub.SubscriptionID,
			MaxOutstandingMessages: cfg.PubSub.MaxOutstandingMessages,
			CredentialsFile:        cfg.PubSub.CredentialsFile,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create pubsub client")
		}
		defer s.Close()
		src = s
	}
	if broker != nil {
		defer broker.Disconnect()
	}

	wc := weather.Client{
		BaseURL:     cfg.Weather.BaseURL,
		APIKey:      cfg.Weather.APIKey,
		Units:       cfg.Weather.Units,
		Timeout:     time.Duration(cfg.Weather.TimeoutSeconds) * time.Second,
		Logger:      logger,
		MockEnabled: cfg.Weather.MockEnabled,
		MockFile:    cfg.Weather.MockFile,
		MockJSON:    cfg.Weather.MockJSON,
	}

	var handler bridge.MessageHandler = &bridge.Handler{
		Logger:    logger,
		Weather:   wc,
		Pusher:    pusher,
		SubFolder: cfg.Handler.SubFolder,
		AckPolicy: ackPolicy(cfg.Handler.AckMode),
	}
	counter, latency := bridge.MakeMetrics("weather_bridge", "handler")
	handler = bridge.MetricsMiddleware(handler, counter, latency)

	ops := httpapi.NewServer(cfg.HTTP.ListenAddr, httpapi.MakeHandler(svcName), logger)
	ops.Start()

	pool := worker.NewPool(cfg.Handler.Workers, cfg.Handler.QueueSize)
	logger.Info().
		Str("transport", cfg.Transport.Kind).
		Str("iot", cfg.IoT.Kind).
		Str("ack_mode", cfg.Handler.AckMode).
		Int("workers", cfg.Handler.Workers).
		Msg("listening")
	if err := src.Receive(ctx, bridge.Dispatch(pool, handler, logger)); err != nil {
		logger.Error().Err(err).Msg("receive failed")
	}

	shutdown(logger, pool, ops, time.Duration(cfg.Handler.DrainTimeoutSeconds)*time.Second)
}

func shutdown(logger zerolog.Logger, pool *worker.Pool, ops *httpapi.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := pool.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("worker pool did not drain in time")
	}
	if err := ops.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("ops http shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
}

func ackPolicy(mode string) bridge.AckPolicy {
	if mode == config.AckLate {
		return bridge.AckAfterProcessing
	}
	return bridge.AckOnReceipt
}
