//go:build linux

package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/vishvananda/netlink"

	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/log"
)

type afpacketOpener struct {
	opts      AFPacketOptions
	frameSize int
	blockSize int
	numBlocks int
}

func newAFPacketOpener(opts AFPacketOptions) (Opener, error) {
	frameSize, blockSize, numBlocks, err := recomputeSize(opts.BufferSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return &afpacketOpener{
		opts:      opts,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}, nil
}

// Open binds a TPACKET_V3 socket to iface with the binding's BPF filter.
func (o *afpacketOpener) Open(iface string, binding Binding) (Link, error) {
	nl, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", iface, err)
	}
	attrs := nl.Attrs()
	if attrs.Flags&net.FlagUp == 0 {
		return nil, fmt.Errorf("interface %s is down (operstate %s)", iface, attrs.OperState)
	}

	tpacket, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface),
		afpacket.OptFrameSize(o.frameSize),
		afpacket.OptBlockSize(o.blockSize),
		afpacket.OptNumBlocks(o.numBlocks),
		afpacket.OptPollTimeout(o.opts.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket on %s: %w", iface, err)
	}

	filter, err := binding.Filter(o.opts.SnapLen)
	if err == nil {
		err = tpacket.SetBPF(filter)
	}
	if err != nil {
		tpacket.Close()
		return nil, fmt.Errorf("failed to set BPF filter on %s: %w", iface, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"iface":  iface,
		"mac":    attrs.HardwareAddr.String(),
		"filter": binding.FilterExpr(),
		"frame":  o.frameSize,
		"blocks": o.numBlocks,
	}).Debug("afpacket link opened")

	return &afpacketLink{
		name:    iface,
		hwAddr:  attrs.HardwareAddr,
		tpacket: tpacket,
	}, nil
}

type afpacketLink struct {
	name      string
	hwAddr    net.HardwareAddr
	tpacket   *afpacket.TPacket
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func (l *afpacketLink) Name() string { return l.name }

func (l *afpacketLink) HardwareAddr() net.HardwareAddr { return l.hwAddr }

func (l *afpacketLink) Transmit(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.ErrLinkClosed
	}
	return l.tpacket.WritePacketData(frame)
}

func (l *afpacketLink) ReceiveMatching(ctx context.Context, match Predicate) (*layers.Ethernet, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, core.ErrLinkClosed
	}
	return pollMatching(ctx, l.tpacket, func(err error) bool {
		return errors.Is(err, afpacket.ErrTimeout)
	}, match)
}

func (l *afpacketLink) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		l.tpacket.Close()
		log.GetLogger().WithField("iface", l.name).Debug("afpacket link closed")
	})
	return nil
}
