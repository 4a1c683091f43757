package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenhouse-net/controller/internal/daemon"
	"github.com/greenhouse-net/controller/internal/infra/identity"
)

func init() {
	rootCmd.AddCommand(identityCmd)
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Print the node's derived device ID",
	RunE:  runIdentity,
}

func runIdentity(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	if cfg.Node.DeviceID != "" {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Node.DeviceID)
		return nil
	}

	id, err := identity.LoadOrCreate(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
