package link

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/gopacket/layers"

	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/log"
)

const memoryQueueLen = 64

// Hub is an in-process broadcast segment per interface name. Every frame
// transmitted on a port is offered to all other ports of the same segment
// whose binding matches, like raw sockets on a shared wire. It implements
// Opener so exchanges can run without privileges.
type Hub struct {
	mu      sync.Mutex
	ports   map[string][]*MemoryLink
	nextMAC byte
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{ports: make(map[string][]*MemoryLink)}
}

// Open attaches a port with a generated locally administered MAC.
func (h *Hub) Open(iface string, binding Binding) (Link, error) {
	h.mu.Lock()
	h.nextMAC++
	mac := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, h.nextMAC}
	h.mu.Unlock()
	return h.Attach(iface, mac, binding), nil
}

// Attach connects a port with the given MAC to the iface segment.
func (h *Hub) Attach(iface string, mac net.HardwareAddr, binding Binding) *MemoryLink {
	l := &MemoryLink{
		hub:     h,
		name:    iface,
		hwAddr:  mac,
		binding: binding,
		inbox:   make(chan []byte, memoryQueueLen),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	h.ports[iface] = append(h.ports[iface], l)
	h.mu.Unlock()
	return l
}

// Ports returns the number of open ports on iface.
func (h *Hub) Ports(iface string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ports[iface])
}

func (h *Hub) deliver(from *MemoryLink, frame []byte) {
	dec := newFrameDecoder()
	eth, ok := dec.decode(frame)
	if !ok {
		return
	}

	h.mu.Lock()
	peers := append([]*MemoryLink(nil), h.ports[from.name]...)
	h.mu.Unlock()

	for _, p := range peers {
		if p == from || !p.binding.Match(eth) {
			continue
		}
		cp := append([]byte(nil), frame...)
		select {
		case p.inbox <- cp:
		default:
			log.GetLogger().WithField("iface", p.name).Warn("memory link queue full, frame dropped")
		}
	}
}

func (h *Hub) detach(l *MemoryLink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ports := h.ports[l.name]
	for i, p := range ports {
		if p == l {
			h.ports[l.name] = append(ports[:i], ports[i+1:]...)
			break
		}
	}
	if len(h.ports[l.name]) == 0 {
		delete(h.ports, l.name)
	}
}

// MemoryLink is a Hub port.
type MemoryLink struct {
	hub       *Hub
	name      string
	hwAddr    net.HardwareAddr
	binding   Binding
	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (l *MemoryLink) Name() string { return l.name }

func (l *MemoryLink) HardwareAddr() net.HardwareAddr { return l.hwAddr }

func (l *MemoryLink) Transmit(frame []byte) error {
	select {
	case <-l.done:
		return core.ErrLinkClosed
	default:
	}
	if len(frame) < 14 {
		return fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	l.hub.deliver(l, frame)
	return nil
}

func (l *MemoryLink) ReceiveMatching(ctx context.Context, match Predicate) (*layers.Ethernet, error) {
	dec := newFrameDecoder()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.done:
			return nil, core.ErrLinkClosed
		case frame := <-l.inbox:
			eth, ok := dec.decode(frame)
			if !ok {
				continue
			}
			if match == nil || match(eth) {
				return eth, nil
			}
		}
	}
}

func (l *MemoryLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.hub.detach(l)
	})
	return nil
}
