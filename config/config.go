package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coremetrics "github.com/smart-ev/chargectl/core/metrics"
	"github.com/smart-ev/chargectl/core/model"
	"github.com/smart-ev/chargectl/infra/comed"
	"github.com/smart-ev/chargectl/infra/mqtt"
	"github.com/smart-ev/chargectl/infra/notify"
)

type Config struct {
	// VehicleVIN identifies the vehicle whose state and command topics the
	// controller binds to.
	VehicleVIN          string             `json:"vehicle_vin"`
	StartupGraceSeconds int                `json:"startup_grace_seconds"`
	Thresholds          model.Thresholds   `json:"thresholds"`
	PriceFeed           comed.Config       `json:"price_feed"`
	MQTT                mqtt.Config        `json:"mqtt"`
	Notification        notify.Config      `json:"notification"`
	Metrics             coremetrics.Config `json:"metrics"`
	Sentry              SentryConfig       `json:"sentry"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides: CHARGECTL_THRESHOLDS__MAX_CHARGE_LEVEL
	// overrides thresholds.max_charge_level.
	if err := k.Load(env.Provider("CHARGECTL_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "chargectl_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset values in every section.
func (c *Config) SetDefaults() {
	if c.StartupGraceSeconds == 0 {
		c.StartupGraceSeconds = 10
	}
	c.Thresholds.SetDefaults()
	c.PriceFeed.SetDefaults()
	c.MQTT.SetDefaults()
	c.Notification.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section. The vehicle VIN is the only field without a
// usable default.
func (c Config) Validate() error {
	if c.VehicleVIN == "" {
		return fmt.Errorf("vehicle_vin is required")
	}
	if c.StartupGraceSeconds < 0 {
		return fmt.Errorf("startup_grace_seconds must not be negative")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.PriceFeed.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Notification.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// StartupGrace returns how long the control loop waits for a first battery
// reading before running anyway.
func (c Config) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceSeconds) * time.Second
}
