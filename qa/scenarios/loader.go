package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/smart-ev/chargectl/core/model"
)

type ThresholdsDef struct {
	PriceCents     float64 `yaml:"price_cents"`
	MinChargeLevel int     `yaml:"min_charge_level"`
	MaxChargeLevel int     `yaml:"max_charge_level"`
}

func (t ThresholdsDef) ToModel() model.Thresholds {
	th := model.Thresholds{
		PriceThresholdCents: t.PriceCents,
		MinChargeLevel:      t.MinChargeLevel,
		MaxChargeLevel:      t.MaxChargeLevel,
	}
	th.SetDefaults()
	return th
}

type Expected struct {
	Decision string `yaml:"decision"`
	Reason   string `yaml:"reason,omitempty"`
}

type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	PriceCents  float64 `yaml:"price_cents"`
	// BatteryPercent left unset models a vehicle that has not reported yet.
	BatteryPercent *int          `yaml:"battery_percent,omitempty"`
	Thresholds     ThresholdsDef `yaml:"thresholds,omitempty"`
	Expected       Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
