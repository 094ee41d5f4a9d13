// Package exchange sends P4calc requests over a link and waits for replies.
package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/link"
	"firestige.xyz/p4calc/internal/log"
	"firestige.xyz/p4calc/internal/metrics"
	"firestige.xyz/p4calc/internal/p4calc"
)

// Request describes one exchange.
type Request struct {
	Interface   string
	Destination net.HardwareAddr
	Op          p4calc.Operation
	Operands    []int32 // at most p4calc.OperandCount, missing slots are 0
	Seed        int32
	Timeout     time.Duration
}

func (r Request) validate() error {
	if len(r.Destination) != 6 {
		return fmt.Errorf("%w: destination %q is not an Ethernet address", core.ErrInvalidRequest, r.Destination)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", core.ErrInvalidRequest, r.Timeout)
	}
	return nil
}

// Controller performs single-shot exchanges: every call opens the link,
// transmits one request, accepts the first frame of the bound protocol not
// sent by itself, and releases the link.
type Controller struct {
	opener  link.Opener
	binding link.Binding
}

// NewController returns a controller using opener for link access and
// binding to recognize replies.
func NewController(opener link.Opener, binding link.Binding) *Controller {
	return &Controller{opener: opener, binding: binding}
}

// SendRequest transmits req and blocks for the reply until req.Timeout or ctx
// ends. A reply whose seed differs from req.Seed is still returned; the
// caller owns correlation when exchanges overlap on one interface.
func (c *Controller) SendRequest(ctx context.Context, req Request) (resp p4calc.Header, err error) {
	opLabel := req.Op.String()
	defer func() {
		metrics.ExchangesTotal.WithLabelValues(opLabel, resultOf(err, err == nil && resp.Seed == req.Seed)).Inc()
	}()

	if err := req.validate(); err != nil {
		return p4calc.Header{}, err
	}
	h, err := p4calc.NewRequest(req.Op, req.Operands, req.Seed)
	if err != nil {
		return p4calc.Header{}, err
	}

	l, err := c.opener.Open(req.Interface, c.binding)
	if err != nil {
		return p4calc.Header{}, fmt.Errorf("%w: open %s: %v", core.ErrTransmit, req.Interface, err)
	}
	defer l.Close()

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"iface": req.Interface,
		"dst":   req.Destination.String(),
		"op":    opLabel,
		"seed":  req.Seed,
	})

	frame, err := buildRequestFrame(l.HardwareAddr(), req.Destination, c.binding, h)
	if err != nil {
		return p4calc.Header{}, fmt.Errorf("%w: build frame: %v", core.ErrTransmit, err)
	}
	if logger.IsDebugEnabled() {
		logger.Debugf("sending request\n%s", h)
	}
	if err := l.Transmit(frame); err != nil {
		return p4calc.Header{}, fmt.Errorf("%w: %s: %v", core.ErrTransmit, req.Interface, err)
	}
	metrics.RequestsTotal.WithLabelValues(opLabel).Inc()
	sent := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	eth, err := l.ReceiveMatching(waitCtx, replyPredicate(c.binding, l.HardwareAddr()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return p4calc.Header{}, fmt.Errorf("%w after %s", core.ErrResponseTimeout, req.Timeout)
		}
		return p4calc.Header{}, fmt.Errorf("wait for reply on %s: %w", req.Interface, err)
	}

	resp, err = p4calc.Decode(eth.Payload)
	if err != nil {
		return p4calc.Header{}, err
	}
	if !resp.IsP4calc() {
		return p4calc.Header{}, fmt.Errorf("%w: marker %q from %s", core.ErrNotP4calc, resp.Marker, eth.SrcMAC)
	}

	rtt := time.Since(sent)
	metrics.ExchangeLatencySeconds.WithLabelValues(opLabel).Observe(rtt.Seconds())
	if resp.Seed != req.Seed {
		logger.WithField("reply_seed", resp.Seed).Warn("reply seed does not match request, returning it anyway")
	}
	logger.WithField("rtt", rtt).Debug("reply received")
	return resp, nil
}

// buildRequestFrame lays out Ethernet | P4calc header | one padding byte.
func buildRequestFrame(src, dst net.HardwareAddr, binding link.Binding, h p4calc.Header) ([]byte, error) {
	return link.BuildFrame(src, dst, binding, &p4calc.Layer{Header: h}, gopacket.Payload{p4calc.Padding})
}

// replyPredicate accepts bound frames not originated by local; raw sockets
// also see the frames this host transmits.
func replyPredicate(binding link.Binding, local net.HardwareAddr) link.Predicate {
	return func(eth *layers.Ethernet) bool {
		return binding.Match(eth) && !bytes.Equal(eth.SrcMAC, local)
	}
}

func resultOf(err error, seedMatched bool) string {
	switch {
	case err == nil && seedMatched:
		return metrics.ResultOK
	case err == nil:
		return metrics.ResultSeedMismatch
	case errors.Is(err, core.ErrResponseTimeout):
		return metrics.ResultTimeout
	case errors.Is(err, core.ErrNotP4calc):
		return metrics.ResultNotP4calc
	case errors.Is(err, core.ErrMalformedHeader):
		return metrics.ResultMalformed
	case errors.Is(err, core.ErrTransmit):
		return metrics.ResultTransmit
	case errors.Is(err, core.ErrInvalidRequest):
		return metrics.ResultInvalid
	case errors.Is(err, context.Canceled):
		return metrics.ResultCanceled
	default:
		return metrics.ResultError
	}
}
