// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/p4calc/internal/config"
	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/log"
)

var (
	// Global flags
	configFile string

	// effective configuration, set by loadConfig before any subcommand runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "p4calc",
	Short: "P4calc - exchange calculator headers with a programmable switch",
	Long: `p4calc sends P4calc requests directly over Ethernet (Ethertype 0x1234)
and prints the reply produced by the device.

Configuration is read from an optional YAML file (root key "p4calc") and
P4CALC_* environment variables; command line flags override both.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (optional)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(&c.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	cfg = c
	return nil
}

// errorKind names the failure class of err for the user.
func errorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedHeader):
		return "MalformedHeader"
	case errors.Is(err, core.ErrNotP4calc):
		return "NotP4calc"
	case errors.Is(err, core.ErrTransmit):
		return "TransmitError"
	case errors.Is(err, core.ErrResponseTimeout):
		return "ResponseTimeout"
	case errors.Is(err, core.ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, core.ErrConfigInvalid), errors.Is(err, core.ErrUnsupportedDriver):
		return "ConfigInvalid"
	default:
		return "Error"
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s: %v\n", errorKind(err), err)
}
