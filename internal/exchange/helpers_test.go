package exchange

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/p4calc/internal/link"
	"firestige.xyz/p4calc/internal/p4calc"
)

var (
	deviceMAC = net.HardwareAddr{0x00, 0x04, 0x00, 0x00, 0x00, 0x00}
	hostMAC   = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
)

// replyFunc builds the frame the device answers with, or nil to stay silent.
type replyFunc func(t *testing.T, req p4calc.Header, eth *layers.Ethernet) []byte

// startDevice attaches a calculation device to iface on hub. Every request
// payload it sees is forwarded on the returned channel.
func startDevice(t *testing.T, hub *link.Hub, iface string, reply replyFunc) <-chan []byte {
	t.Helper()
	port := hub.Attach(iface, deviceMAC, link.DefaultBinding())
	seen := make(chan []byte, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
		port.Close()
	})

	go func() {
		defer close(done)
		for {
			eth, err := port.ReceiveMatching(ctx, nil)
			if err != nil {
				return
			}
			payload := append([]byte(nil), eth.Payload...)
			select {
			case seen <- payload:
			default:
			}
			req, err := p4calc.Decode(payload)
			if err != nil {
				continue
			}
			if frame := reply(t, req, eth); frame != nil {
				if err := port.Transmit(frame); err != nil {
					return
				}
			}
		}
	}()
	return seen
}

// echo answers with the request header unchanged.
func echo(t *testing.T, req p4calc.Header, eth *layers.Ethernet) []byte {
	return replyWith(t, eth, req)
}

func replyWith(t *testing.T, eth *layers.Ethernet, h p4calc.Header) []byte {
	frame, err := link.BuildFrame(deviceMAC, eth.SrcMAC, link.DefaultBinding(), &p4calc.Layer{Header: h})
	require.NoError(t, err)
	return frame
}

// rawReply sends an Ethernet header followed by payload, without padding.
func rawReply(eth *layers.Ethernet, payload []byte) []byte {
	frame := make([]byte, 0, 14+len(payload))
	frame = append(frame, eth.SrcMAC...)
	frame = append(frame, deviceMAC...)
	frame = append(frame, 0x12, 0x34)
	return append(frame, payload...)
}

// countingOpener counts link acquisitions and releases.
type countingOpener struct {
	inner  link.Opener
	opens  atomic.Int32
	closes atomic.Int32
}

func (o *countingOpener) Open(iface string, b link.Binding) (link.Link, error) {
	l, err := o.inner.Open(iface, b)
	if err != nil {
		return nil, err
	}
	o.opens.Add(1)
	return &countingLink{Link: l, closes: &o.closes}, nil
}

type countingLink struct {
	link.Link
	closes *atomic.Int32
}

func (l *countingLink) Close() error {
	l.closes.Add(1)
	return l.Link.Close()
}

type mockLink struct {
	mock.Mock
}

func (m *mockLink) Name() string { return "mock0" }

func (m *mockLink) HardwareAddr() net.HardwareAddr { return hostMAC }

func (m *mockLink) Transmit(frame []byte) error {
	args := m.Called(frame)
	return args.Error(0)
}

func (m *mockLink) ReceiveMatching(ctx context.Context, match link.Predicate) (*layers.Ethernet, error) {
	args := m.Called(ctx, match)
	eth, _ := args.Get(0).(*layers.Ethernet)
	return eth, args.Error(1)
}

func (m *mockLink) Close() error {
	args := m.Called()
	return args.Error(0)
}

type mockOpener struct {
	mock.Mock
}

func (m *mockOpener) Open(iface string, b link.Binding) (link.Link, error) {
	args := m.Called(iface, b)
	l, _ := args.Get(0).(link.Link)
	return l, args.Error(1)
}

// ethernetWith wraps payload as a decoded frame from the device.
func ethernetWith(payload []byte) *layers.Ethernet {
	return &layers.Ethernet{
		BaseLayer:    layers.BaseLayer{Payload: payload},
		SrcMAC:       deviceMAC,
		DstMAC:       hostMAC,
		EthernetType: link.DefaultEtherType,
	}
}
