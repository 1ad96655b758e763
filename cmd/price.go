package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/smart-ev/chargectl/config"
	"github.com/smart-ev/chargectl/infra/comed"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Show current electricity prices and a threshold suggestion",
	RunE:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) error {
	// the feed works without any configuration; a config file only
	// overrides the endpoint
	feedCfg := comed.Config{}
	if cfg, err := config.Load(cfgPath); err == nil {
		feedCfg = cfg.PriceFeed
	}
	client := comed.NewClient(feedCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	series, err := client.FetchSeries(ctx)
	if err != nil {
		return err
	}

	cur := series[0]
	fmt.Printf("current price: %.2f¢/kWh (%s)\n", cur.Cents, cur.Tier())

	recent := series
	if len(recent) > 5 {
		recent = recent[:5]
	}
	fmt.Println("recent readings:")
	for _, r := range recent {
		fmt.Printf("  %s  %6.2f¢/kWh  %s\n", r.ObservedAt.Format("15:04"), r.Cents, r.Tier())
	}

	cents := make([]float64, len(series))
	for i, r := range series {
		cents[i] = r.Cents
	}
	fmt.Printf("last %d readings: mean %.2f¢, min %.2f¢, max %.2f¢\n",
		len(cents), stat.Mean(cents, nil), floats.Min(cents), floats.Max(cents))
	fmt.Printf("suggested threshold: %.1f¢/kWh\n", suggestThreshold(cur.Cents))
	return nil
}

// suggestThreshold proposes a charge threshold slightly above the current
// price, capped so that a spike does not suggest charging through it.
func suggestThreshold(current float64) float64 {
	switch {
	case current <= 4.0:
		return 5.0
	case current <= 8.0:
		return current + 1.0
	default:
		return 6.0
	}
}
