package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/p4calc/internal/exchange"
)

var (
	sendFlags  exchangeFlags
	sendOutput string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one request and print the reply",
	Long: `Send one P4calc request and wait for the reply.

Examples:
  p4calc send                                          # op G, seed 1234 to 00:04:00:00:00:00 on eth0
  p4calc send -i veth0 --op + --operands 1,2 --seed 42
  p4calc send -i veth0 --op '*' --operands 6,7 -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseOutputFormat(sendOutput)
		if err != nil {
			return err
		}
		c := sendFlags.apply(*cfg)
		req, err := sendFlags.request(c)
		if err != nil {
			return err
		}
		controller, err := newController(c)
		if err != nil {
			return err
		}
		return runSend(cmd.Context(), controller, req, format, cmd.OutOrStdout())
	},
}

func init() {
	sendFlags.register(sendCmd.Flags())
	sendCmd.Flags().StringVar(&sendOutput, "output", "text", "reply format: text | json | yaml")
}

func runSend(ctx context.Context, s exchange.Sender, req exchange.Request, format outputFormat, w io.Writer) error {
	resp, err := s.SendRequest(ctx, req)
	if err != nil {
		return err
	}
	if resp.Seed != req.Seed {
		fmt.Fprintf(w, "warning: reply seed %d does not match request seed %d\n", resp.Seed, req.Seed)
	}
	return renderHeader(w, format, resp)
}
