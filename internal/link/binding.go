package link

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"
)

// DefaultEtherType is the Ethertype reserved for P4calc frames.
const DefaultEtherType layers.EthernetType = 0x1234

// Binding associates an Ethertype with the protocol a link serves. It is
// fixed when the link is opened.
type Binding struct {
	EtherType layers.EthernetType
}

// DefaultBinding returns the P4calc binding.
func DefaultBinding() Binding {
	return Binding{EtherType: DefaultEtherType}
}

// Match reports whether eth carries the bound protocol.
func (b Binding) Match(eth *layers.Ethernet) bool {
	return eth != nil && eth.EthernetType == b.EtherType
}

// Instructions returns a classic BPF program accepting up to snapLen bytes
// of frames with the bound Ethertype.
func (b Binding) Instructions(snapLen uint32) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(b.EtherType), SkipFalse: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	}
}

// Filter assembles Instructions for attaching to a socket.
func (b Binding) Filter(snapLen int) ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(b.Instructions(uint32(snapLen)))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble BPF filter: %w", err)
	}
	return raw, nil
}

// FilterExpr returns the libpcap filter expression for the binding.
func (b Binding) FilterExpr() string {
	return fmt.Sprintf("ether proto 0x%04x", uint16(b.EtherType))
}
