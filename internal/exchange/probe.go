package exchange

import (
	"context"
	"time"

	"firestige.xyz/p4calc/internal/log"
	"firestige.xyz/p4calc/internal/p4calc"
)

// Sender performs one exchange. *Controller implements it.
type Sender interface {
	SendRequest(ctx context.Context, req Request) (p4calc.Header, error)
}

// ProbeResult is the outcome of one probe iteration.
type ProbeResult struct {
	Seq      int
	Request  Request
	Response p4calc.Header
	RTT      time.Duration
	Err      error
}

// ProbeStats summarizes a probe run.
type ProbeStats struct {
	Sent     int
	Received int
	MinRTT   time.Duration
	MaxRTT   time.Duration
	TotalRTT time.Duration
}

// AvgRTT returns the mean RTT of received replies.
func (s ProbeStats) AvgRTT() time.Duration {
	if s.Received == 0 {
		return 0
	}
	return s.TotalRTT / time.Duration(s.Received)
}

// Probe repeats base every interval, count times (0 = until ctx ends). The
// seed advances by one per iteration and wraps at the int32 boundary.
// Failures are reported through fn and do not stop the run. A non-positive
// interval means one second.
func Probe(ctx context.Context, s Sender, base Request, interval time.Duration, count int, fn func(ProbeResult)) ProbeStats {
	if interval <= 0 {
		interval = time.Second
	}
	var stats ProbeStats
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	req := base
	for seq := 1; count == 0 || seq <= count; seq++ {
		start := time.Now()
		resp, err := s.SendRequest(ctx, req)
		rtt := time.Since(start)

		stats.Sent++
		if err == nil {
			stats.Received++
			stats.TotalRTT += rtt
			if stats.MinRTT == 0 || rtt < stats.MinRTT {
				stats.MinRTT = rtt
			}
			if rtt > stats.MaxRTT {
				stats.MaxRTT = rtt
			}
		} else {
			log.GetLogger().WithError(err).WithField("seq", seq).Debug("probe exchange failed")
		}
		if fn != nil {
			fn(ProbeResult{Seq: seq, Request: req, Response: resp, RTT: rtt, Err: err})
		}

		req.Seed++
		if count != 0 && seq == count {
			break
		}
		select {
		case <-ctx.Done():
			return stats
		case <-ticker.C:
		}
	}
	return stats
}
