package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/link"
	"firestige.xyz/p4calc/internal/log"
	"firestige.xyz/p4calc/internal/metrics"
	"firestige.xyz/p4calc/internal/p4calc"
)

type result struct {
	header p4calc.Header
	err    error
}

// Correlator multiplexes concurrent requests over one open link. Each
// request registers its seed; a dispatcher goroutine hands every reply to the
// request with the same seed. Replies for unknown seeds are dropped.
type Correlator struct {
	link    link.Link
	binding link.Binding
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	pending map[int32]chan result
	err     error // set once the correlator can no longer serve requests

	closeOnce sync.Once
}

// NewCorrelator opens iface and starts dispatching replies.
func NewCorrelator(opener link.Opener, iface string, binding link.Binding) (*Correlator, error) {
	l, err := opener.Open(iface, binding)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrTransmit, iface, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Correlator{
		link:    l,
		binding: binding,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: make(map[int32]chan result),
	}
	go c.dispatch(ctx)
	return c, nil
}

func (c *Correlator) dispatch(ctx context.Context) {
	defer close(c.done)
	match := replyPredicate(c.binding, c.link.HardwareAddr())

	for {
		eth, err := c.link.ReceiveMatching(ctx, match)
		if err != nil {
			if ctx.Err() == nil {
				log.GetLogger().WithError(err).WithField("iface", c.link.Name()).Error("correlator receive failed")
				c.fail(err)
			}
			return
		}

		h, err := p4calc.Decode(eth.Payload)
		if err != nil || !h.IsP4calc() {
			log.GetLogger().WithField("src", eth.SrcMAC.String()).Debug("correlator dropped non-P4calc frame")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[h.Seed]
		if ok {
			delete(c.pending, h.Seed)
		}
		c.mu.Unlock()

		if !ok {
			metrics.CorrelatorUnmatchedTotal.Inc()
			log.GetLogger().WithField("seed", h.Seed).Debug("correlator dropped reply without pending request")
			continue
		}
		ch <- result{header: h}
	}
}

// fail completes every pending request with err and rejects new ones.
func (c *Correlator) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	for seed, ch := range c.pending {
		ch <- result{err: err}
		delete(c.pending, seed)
	}
}

// Do transmits req and waits for the reply carrying req.Seed. Only one
// request per seed may be in flight. req.Interface is ignored; the
// correlator's link is used.
func (c *Correlator) Do(ctx context.Context, req Request) (resp p4calc.Header, err error) {
	opLabel := req.Op.String()
	defer func() {
		metrics.ExchangesTotal.WithLabelValues(opLabel, resultOf(err, err == nil)).Inc()
	}()

	if err := req.validate(); err != nil {
		return p4calc.Header{}, err
	}
	h, err := p4calc.NewRequest(req.Op, req.Operands, req.Seed)
	if err != nil {
		return p4calc.Header{}, err
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return p4calc.Header{}, err
	}
	if _, busy := c.pending[req.Seed]; busy {
		c.mu.Unlock()
		return p4calc.Header{}, fmt.Errorf("%w: %d", core.ErrSeedInUse, req.Seed)
	}
	c.pending[req.Seed] = ch
	c.mu.Unlock()

	metrics.CorrelatorInflight.Inc()
	defer metrics.CorrelatorInflight.Dec()
	defer c.forget(req.Seed, ch)

	frame, err := buildRequestFrame(c.link.HardwareAddr(), req.Destination, c.binding, h)
	if err != nil {
		return p4calc.Header{}, fmt.Errorf("%w: build frame: %v", core.ErrTransmit, err)
	}
	if err := c.link.Transmit(frame); err != nil {
		return p4calc.Header{}, fmt.Errorf("%w: %s: %v", core.ErrTransmit, c.link.Name(), err)
	}
	metrics.RequestsTotal.WithLabelValues(opLabel).Inc()
	sent := time.Now()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err == nil {
			metrics.ExchangeLatencySeconds.WithLabelValues(opLabel).Observe(time.Since(sent).Seconds())
		}
		return r.header, r.err
	case <-timer.C:
		return p4calc.Header{}, fmt.Errorf("%w after %s", core.ErrResponseTimeout, req.Timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return p4calc.Header{}, fmt.Errorf("%w: %v", core.ErrResponseTimeout, ctx.Err())
		}
		return p4calc.Header{}, ctx.Err()
	}
}

// forget drops the registration of seed if it still belongs to ch.
func (c *Correlator) forget(seed int32, ch chan result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[seed] == ch {
		delete(c.pending, seed)
	}
}

// Pending returns the number of requests awaiting a reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops the dispatcher, fails pending requests with ErrLinkClosed and
// releases the link exactly once.
func (c *Correlator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		c.fail(core.ErrLinkClosed)
		err = c.link.Close()
	})
	return err
}
