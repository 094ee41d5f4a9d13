package link

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/log"
)

type pcapOpener struct {
	opts PCAPOptions
}

// Open starts a live libpcap capture on iface filtered to the binding.
func (o *pcapOpener) Open(iface string, binding Binding) (Link, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", iface, err)
	}
	if ifi.Flags&net.FlagUp == 0 {
		return nil, fmt.Errorf("interface %s is down", iface)
	}

	handle, err := pcap.OpenLive(iface, int32(o.opts.SnapLen), o.opts.Promiscuous, o.opts.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap handle on %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter(binding.FilterExpr()); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter on %s: %w", iface, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"iface":  iface,
		"mac":    ifi.HardwareAddr.String(),
		"filter": binding.FilterExpr(),
	}).Debug("pcap link opened")

	return &pcapLink{name: iface, hwAddr: ifi.HardwareAddr, handle: handle}, nil
}

type pcapLink struct {
	name      string
	hwAddr    net.HardwareAddr
	handle    *pcap.Handle
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func (l *pcapLink) Name() string { return l.name }

func (l *pcapLink) HardwareAddr() net.HardwareAddr { return l.hwAddr }

func (l *pcapLink) Transmit(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.ErrLinkClosed
	}
	return l.handle.WritePacketData(frame)
}

func (l *pcapLink) ReceiveMatching(ctx context.Context, match Predicate) (*layers.Ethernet, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, core.ErrLinkClosed
	}
	return pollMatching(ctx, l.handle, func(err error) bool {
		return err == pcap.NextErrorTimeoutExpired
	}, match)
}

func (l *pcapLink) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		l.handle.Close()
		log.GetLogger().WithField("iface", l.name).Debug("pcap link closed")
	})
	return nil
}
