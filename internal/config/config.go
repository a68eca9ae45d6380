package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v7"
	ini "gopkg.in/ini.v1"
)

const (
	TransportPubSub = "pubsub"
	TransportMQTT   = "mqtt"

	PusherCloudIoT = "cloudiot"
	PusherMQTT     = "mqtt"

	AckEarly = "early"
	AckLate  = "late"

	DefaultSubFolder = "weather/location"
)

type TransportConfig struct {
	Kind string `ini:"kind" env:"KIND"`
}

type PubSubConfig struct {
	ProjectID              string `ini:"project_id" env:"PROJECT_ID"`
	SubscriptionID         string `ini:"subscription_id" env:"SUBSCRIPTION_ID"`
	MaxOutstandingMessages int    `ini:"max_outstanding_messages" env:"MAX_OUTSTANDING_MESSAGES"`
	CredentialsFile        string `ini:"credentials_file" env:"CREDENTIALS_FILE"`
}

type MQTTConfig struct {
	Broker      string `ini:"broker" env:"BROKER"`
	Username    string `ini:"username" env:"USERNAME"`
	Password    string `ini:"password" env:"PASSWORD"`
	ClientID    string `ini:"client_id" env:"CLIENT_ID"`
	QoS         int    `ini:"qos" env:"QOS"`
	EventsTopic string `ini:"events_topic" env:"EVENTS_TOPIC"`
	Retain      bool   `ini:"retain" env:"RETAIN"`
	KeepAlive   int    `ini:"keep_alive_seconds" env:"KEEP_ALIVE_SECONDS"`
	// Registry coordinates stamped on events that arrive over the broker,
	// which carries only the device id in the topic.
	ProjectID        string `ini:"project_id" env:"PROJECT_ID"`
	RegistryLocation string `ini:"registry_location" env:"REGISTRY_LOCATION"`
	RegistryID       string `ini:"registry_id" env:"REGISTRY_ID"`
}

type IoTConfig struct {
	Kind            string `ini:"kind" env:"KIND"`
	Endpoint        string `ini:"endpoint" env:"ENDPOINT"`
	CredentialsFile string `ini:"credentials_file" env:"CREDENTIALS_FILE"`
}

type WeatherConfig struct {
	BaseURL        string `ini:"base_url" env:"BASE_URL"`
	APIKey         string `ini:"api_key" env:"API_KEY"`
	Units          string `ini:"units" env:"UNITS"`
	TimeoutSeconds int    `ini:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	MockEnabled    bool   `ini:"mock_enabled" env:"MOCK_ENABLED"`
	MockFile       string `ini:"mock_file" env:"MOCK_FILE"`
	MockJSON       string `ini:"mock_json" env:"MOCK_JSON"`
}

type HandlerConfig struct {
	SubFolder           string `ini:"sub_folder" env:"SUB_FOLDER"`
	AckMode             string `ini:"ack_mode" env:"ACK_MODE"`
	Workers             int    `ini:"workers" env:"WORKERS"`
	QueueSize           int    `ini:"queue_size" env:"QUEUE_SIZE"`
	DrainTimeoutSeconds int    `ini:"drain_timeout_seconds" env:"DRAIN_TIMEOUT_SECONDS"`
}

type LoggingConfig struct {
	File       string `ini:"file" env:"FILE"`
	Level      string `ini:"level" env:"LEVEL"`
	Format     string `ini:"format" env:"FORMAT"`
	MaxSizeMB  int    `ini:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `ini:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `ini:"max_age_days" env:"MAX_AGE_DAYS"`
}

type HTTPConfig struct {
	ListenAddr string `ini:"listen_addr" env:"LISTEN_ADDR"`
}

type Config struct {
	Transport TransportConfig
	PubSub    PubSubConfig
	MQTT      MQTTConfig
	IoT       IoTConfig
	Weather   WeatherConfig
	Handler   HandlerConfig
	Logging   LoggingConfig
	HTTP      HTTPConfig
}

// section pairs an ini section with the env prefix overriding it.
type section struct {
	name   string
	prefix string
	target any
}

func (c *Config) sections() []section {
	return []section{
		{"transport", "WB_TRANSPORT_", &c.Transport},
		{"pubsub", "WB_PUBSUB_", &c.PubSub},
		{"mqtt", "WB_MQTT_", &c.MQTT},
		{"iot", "WB_IOT_", &c.IoT},
		{"weather", "WB_WEATHER_", &c.Weather},
		{"handler", "WB_HANDLER_", &c.Handler},
		{"logging", "WB_LOGGING_", &c.Logging},
		{"http", "WB_HTTP_", &c.HTTP},
	}
}

// Load reads the ini file at path, applies WB_<SECTION>_<KEY> environment
// overrides, fills defaults and validates the result. An empty path skips
// the file and relies on the environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	var f *ini.File
	if path != "" {
		// IgnoreInlineComment keeps '#' in values such as "/devices/+/events/#".
		lf, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
		if err != nil {
			return cfg, err
		}
		f = lf
	}
	for _, s := range cfg.sections() {
		if f != nil {
			if err := f.Section(s.name).MapTo(s.target); err != nil {
				return cfg, fmt.Errorf("section %s: %w", s.name, err)
			}
		}
		if err := env.Parse(s.target, env.Options{Prefix: s.prefix}); err != nil {
			return cfg, fmt.Errorf("env %s*: %w", s.prefix, err)
		}
	}
	cfg.MQTT.EventsTopic = strings.Trim(cfg.MQTT.EventsTopic, "\"'")
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportPubSub
	}
	if c.IoT.Kind == "" {
		c.IoT.Kind = PusherCloudIoT
	}
	if c.PubSub.MaxOutstandingMessages <= 0 {
		c.PubSub.MaxOutstandingMessages = 10
	}
	if c.MQTT.EventsTopic == "" {
		c.MQTT.EventsTopic = "/devices/+/events/#"
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		c.MQTT.QoS = 1
	}
	if c.MQTT.KeepAlive <= 0 {
		c.MQTT.KeepAlive = 30
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://api.openweathermap.org/data/3.0/onecall"
	}
	if c.Weather.Units == "" {
		c.Weather.Units = "metric"
	}
	if c.Weather.TimeoutSeconds <= 0 {
		c.Weather.TimeoutSeconds = 10
	}
	if c.Handler.SubFolder == "" {
		c.Handler.SubFolder = DefaultSubFolder
	}
	if c.Handler.AckMode == "" {
		c.Handler.AckMode = AckEarly
	}
	if c.Handler.Workers <= 0 {
		c.Handler.Workers = 4
	}
	if c.Handler.QueueSize <= 0 {
		c.Handler.QueueSize = c.Handler.Workers
	}
	if c.Handler.DrainTimeoutSeconds <= 0 {
		c.Handler.DrainTimeoutSeconds = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":9090"
	}
}

// Validate checks the settings the selected transport and pusher depend on.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport.Kind {
	case TransportPubSub:
		if c.PubSub.ProjectID == "" {
			errs = append(errs, errors.New("pubsub.project_id must be set"))
		}
		if c.PubSub.SubscriptionID == "" {
			errs = append(errs, errors.New("pubsub.subscription_id must be set"))
		}
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker must be set"))
		}
		if c.MQTT.ProjectID == "" || c.MQTT.RegistryLocation == "" || c.MQTT.RegistryID == "" {
			errs = append(errs, errors.New("mqtt.project_id, mqtt.registry_location and mqtt.registry_id must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.kind %q is not one of pubsub, mqtt", c.Transport.Kind))
	}
	switch c.IoT.Kind {
	case PusherCloudIoT:
	case PusherMQTT:
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker must be set for iot.kind=mqtt"))
		}
	default:
		errs = append(errs, fmt.Errorf("iot.kind %q is not one of cloudiot, mqtt", c.IoT.Kind))
	}
	if c.Handler.AckMode != AckEarly && c.Handler.AckMode != AckLate {
		errs = append(errs, fmt.Errorf("handler.ack_mode %q is not one of early, late", c.Handler.AckMode))
	}
	// Device payloads carry Celsius; other unit systems would change their meaning.
	if c.Weather.Units != "metric" {
		errs = append(errs, fmt.Errorf("weather.units %q is not supported, only metric", c.Weather.Units))
	}
	if !c.Weather.MockEnabled && c.Weather.APIKey == "" {
		errs = append(errs, errors.New("weather.api_key must be set unless weather.mock_enabled"))
	}
	return errors.Join(errs...)
}
