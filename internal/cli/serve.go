package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/greenhouse-net/controller/internal/daemon"
	"github.com/greenhouse-net/controller/internal/infra/simdrivers"
)

func init() {
	serveCmd.Flags().StringVar(&serveBrokerURL, "broker", "", "MQTT broker URL (overrides config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Data directory (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveBrokerURL string
	serveDataDir   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the greenhouse node controller",
	Long:  `Start sensing, control, UI, WiFi provisioning, and MQTT connectivity, blocking until terminated.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if serveBrokerURL != "" {
		cfg.MQTT.BrokerURL = serveBrokerURL
	}
	if serveDataDir != "" {
		cfg.Paths.DataDir = serveDataDir
	}

	drivers := daemon.Drivers{
		Sensors:   simdrivers.NewSensors(),
		Actuators: simdrivers.NewActuators(),
		Display:   simdrivers.NewDisplay(),
		Radio:     simdrivers.NewRadio(),
		Updater:   simdrivers.NewUpdater(),
	}

	d, err := daemon.New(cfg, drivers)
	if err != nil {
		return err
	}

	return d.Serve(context.Background())
}
