package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/p4calc/internal/exchange"
	"firestige.xyz/p4calc/internal/log"
	"firestige.xyz/p4calc/internal/metrics"
)

var (
	probeFlags    exchangeFlags
	probeInterval time.Duration
	probeCount    int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send requests repeatedly and report round trip times",
	Long: `Send a request every interval, advancing the seed by one each time.
Failures are reported and counted; they do not stop the probe.

Examples:
  p4calc probe -i veth0                        # until interrupted, one request per second
  p4calc probe -i veth0 --count 10 --interval 200ms`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := probeFlags.apply(*cfg)
		req, err := probeFlags.request(c)
		if err != nil {
			return err
		}
		controller, err := newController(c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if c.Metrics.Enabled {
			srv := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := srv.Stop(context.Background()); err != nil {
					log.GetLogger().WithError(err).Warn("failed to stop metrics server")
				}
			}()
		}

		stats := runProbe(ctx, controller, req, probeInterval, probeCount, cmd.OutOrStdout())
		if stats.Received == 0 && stats.Sent > 0 {
			return fmt.Errorf("no replies to %d requests", stats.Sent)
		}
		return nil
	},
}

func init() {
	probeFlags.register(probeCmd.Flags())
	probeCmd.Flags().DurationVar(&probeInterval, "interval", time.Second, "time between requests")
	probeCmd.Flags().IntVar(&probeCount, "count", 0, "number of requests, 0 = until interrupted")
}

func runProbe(ctx context.Context, s exchange.Sender, req exchange.Request, interval time.Duration, count int, w io.Writer) exchange.ProbeStats {
	fmt.Fprintf(w, "PROBE %s %s op=%s\n", req.Interface, req.Destination, req.Op)
	stats := exchange.Probe(ctx, s, req, interval, count, func(r exchange.ProbeResult) {
		if r.Err != nil {
			fmt.Fprintf(w, "seq=%d seed=%d %s: %v\n", r.Seq, r.Request.Seed, errorKind(r.Err), r.Err)
			return
		}
		fmt.Fprintf(w, "seq=%d seed=%d t_0=%d rtt=%s\n", r.Seq, r.Response.Seed, r.Response.Operands[0], r.RTT)
	})

	loss := 0.0
	if stats.Sent > 0 {
		loss = float64(stats.Sent-stats.Received) / float64(stats.Sent) * 100
	}
	fmt.Fprintf(w, "--- %d sent, %d received, %.1f%% loss", stats.Sent, stats.Received, loss)
	if stats.Received > 0 {
		fmt.Fprintf(w, ", rtt min/avg/max = %s/%s/%s", stats.MinRTT, stats.AvgRTT(), stats.MaxRTT)
	}
	fmt.Fprintln(w)
	return stats
}
