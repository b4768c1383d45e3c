package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"hs100/device"
	"hs100/integration/mqtt"
	"hs100/kasa"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr" envconfig:"HTTP_ADDR"`
	} `yaml:"http"`

	MQTT mqtt.Config `yaml:"mqtt"`

	Kasa struct {
		Port         int           `yaml:"port" envconfig:"KASA_PORT"`
		Timeout      time.Duration `yaml:"timeout" envconfig:"KASA_TIMEOUT"`
		CacheTTL     time.Duration `yaml:"cache_ttl" envconfig:"KASA_CACHE_TTL"`
		PollInterval time.Duration `yaml:"poll_interval" envconfig:"KASA_POLL_INTERVAL"`
		Debug        bool          `yaml:"debug" envconfig:"KASA_DEBUG"`

		// Maps names to "host" or "host:port"
		Outlets map[device.InternalName]string `yaml:"outlets" ignored:"true"`
	} `yaml:"kasa"`
}

// Load reads the yaml file at path and then applies the environment on top.
func Load(path string) (Config, error) {
	var cfg Config

	// First load the config from the yaml file
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Then load values from environment
	// This can be used to either override the config or pass in secrets
	err = envconfig.Process("", &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse environment config: %w", err)
	}

	cfg.setDefaults()

	return cfg, cfg.validate()
}

func (cfg *Config) setDefaults() {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8090"
	}

	if cfg.Kasa.Port == 0 {
		cfg.Kasa.Port = kasa.DefaultPort
	}
	if cfg.Kasa.Timeout == 0 {
		cfg.Kasa.Timeout = kasa.DefaultTimeout
	}
	if cfg.Kasa.PollInterval == 0 {
		cfg.Kasa.PollInterval = 30 * time.Second
	}

	if cfg.MQTT.Port == "" {
		cfg.MQTT.Port = "1883"
	}
	if cfg.MQTT.Prefix == "" {
		cfg.MQTT.Prefix = "kasa"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "kasa-" + uuid.NewString()
	}
}

func (cfg *Config) validate() error {
	for name, host := range cfg.Kasa.Outlets {
		if !name.Valid() {
			return fmt.Errorf("outlet name '%s' should be 'room/name' or 'name'", name)
		}
		if host == "" {
			return fmt.Errorf("outlet '%s' has no host", name)
		}
	}

	if cfg.Kasa.Timeout < 0 || cfg.Kasa.CacheTTL < 0 || cfg.Kasa.PollInterval < 0 {
		return errors.New("durations can not be negative")
	}

	return nil
}
