// Package cli implements the greenhouse node's command-line interface
// using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/greenhouse-net/controller/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "greenhoused",
	Short: "greenhoused — the greenhouse node controller",
	Long: `greenhoused runs a single greenhouse node: sensing, climate/irrigation
control, local display, WiFi provisioning, MQTT connectivity, and OTA
update governance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	daemon.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
