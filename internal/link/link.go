// Package link provides raw Ethernet frame transmission and filtered
// reception for protocols carried directly over Ethernet.
package link

import (
	"context"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Predicate selects received frames.
type Predicate func(eth *layers.Ethernet) bool

// Link is an open handle on one interface. A Link is owned by a single
// exchange at a time; Close releases it and is safe to call more than once.
type Link interface {
	// Name returns the interface name.
	Name() string

	// HardwareAddr returns the interface MAC, used as the frame source.
	HardwareAddr() net.HardwareAddr

	// Transmit writes one complete Ethernet frame.
	Transmit(frame []byte) error

	// ReceiveMatching blocks until a frame satisfying match arrives or ctx
	// is done, in which case ctx.Err() is returned.
	ReceiveMatching(ctx context.Context, match Predicate) (*layers.Ethernet, error)

	Close() error
}

// Opener acquires a Link for an interface. The binding is installed as a
// receive filter where the driver supports it.
type Opener interface {
	Open(iface string, binding Binding) (Link, error)
}

// BuildFrame serializes an Ethernet header tagged with the binding's
// Ethertype followed by the given layers.
func BuildFrame(src, dst net.HardwareAddr, binding Binding, payload ...gopacket.SerializableLayer) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: binding.EtherType,
	}
	buf := gopacket.NewSerializeBuffer()
	all := append([]gopacket.SerializableLayer{eth}, payload...)
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, all...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// frameDecoder decodes the Ethernet header of received frames, reusing its
// layer between calls.
type frameDecoder struct {
	eth     layers.Ethernet
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func newFrameDecoder() *frameDecoder {
	d := &frameDecoder{decoded: make([]gopacket.LayerType, 0, 1)}
	d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &d.eth)
	d.parser.IgnoreUnsupported = true
	return d
}

// decode returns a copy of the Ethernet layer of data, or false when data is
// not a well-formed Ethernet frame.
func (d *frameDecoder) decode(data []byte) (*layers.Ethernet, bool) {
	if err := d.parser.DecodeLayers(data, &d.decoded); err != nil || len(d.decoded) == 0 {
		return nil, false
	}
	eth := d.eth
	return &eth, true
}
