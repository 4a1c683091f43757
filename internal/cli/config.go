package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/greenhouse-net/controller/internal/daemon"
	"github.com/greenhouse-net/controller/internal/infra/store"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the node's configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted runtime setpoints as JSON",
	Long: `Prints the runtime setpoints (temp_min, temp_max, hum_max, soil_dry,
soil_wet, tank thresholds, calibration values) as currently persisted — this
is the table command dispatch mutates, distinct from the static TOML config
(broker address, portal settings).`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(st.LoadConfig())
}
