package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/smart-ev/chargectl/config"
	"github.com/smart-ev/chargectl/infra/mqtt"
)

var watchTopic string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print traffic on the vehicle topics",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchTopic, "topic", "homeassistant/#", "topic filter to subscribe to")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-watch-%d", mqttCfg.ClientID, time.Now().UnixNano())
	opts, err := mqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer cli.Disconnect(250)

	if token := cli.Subscribe(watchTopic, 0, func(_ paho.Client, msg paho.Message) {
		fmt.Printf("%s  %s  %s\n", time.Now().Format(time.TimeOnly), msg.Topic(), msg.Payload())
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", watchTopic, token.Error())
	}

	fmt.Printf("watching %s, ctrl-c to stop\n", watchTopic)
	<-ctx.Done()
	return nil
}
