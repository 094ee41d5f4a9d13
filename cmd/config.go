package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/p4calc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, the config file and
P4CALC_* environment variables.

Examples:
  p4calc config
  P4CALC_LINK_INTERFACE=veth0 p4calc config -c p4calc.yml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig(cfg, cmd.OutOrStdout())
	},
}

func runConfig(c *config.Config, w io.Writer) error {
	out, err := config.Dump(c)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
