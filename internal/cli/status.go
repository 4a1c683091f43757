package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/greenhouse-net/controller/internal/daemon"
	"github.com/greenhouse-net/controller/internal/infra/identity"
	"github.com/greenhouse-net/controller/internal/infra/store"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted configuration and boot health as JSON",
	Long: `Prints the node's identity, persisted setpoints, and boot-verification
counters. Live sensor/actuator/connectivity state is only available while
greenhoused serve is running, via the portal's optional /status endpoint.`,
	RunE: runStatus,
}

// staticStatus is what the status command can read without a live
// process: everything durable, not the in-memory snapshots that only the
// running daemon holds (see daemon.Status for the live view).
type staticStatus struct {
	DeviceID string `json:"device_id"`
	Config   any    `json:"config"`
	Boot     any    `json:"boot_health"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	deviceID := cfg.Node.DeviceID
	if deviceID == "" {
		id, err := identity.LoadOrCreate(cfg.Paths.DataDir)
		if err != nil {
			return err
		}
		deviceID = id
	}

	st, err := store.Open(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	out := staticStatus{
		DeviceID: deviceID,
		Config:   st.LoadConfig(),
		Boot:     st.LoadBootHealth(),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
