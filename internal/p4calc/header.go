// Package p4calc implements the P4calc header: a fixed 46-byte calculation
// request/response carried directly as the payload of an Ethernet frame.
package p4calc

import (
	"encoding/binary"
	"fmt"
	"strings"

	"firestige.xyz/p4calc/internal/core"
)

const (
	// HeaderLen is the encoded header size: marker + op + 10 operands + seed.
	HeaderLen = 1 + 1 + OperandCount*4 + 4

	// OperandCount is the fixed operand capacity of a header.
	OperandCount = 10

	// Marker identifies a payload as P4calc.
	Marker byte = 'K'

	// Padding follows the header on request frames.
	Padding byte = ' '

	// Field offsets
	offMarker   = 0
	offOp       = 1
	offOperands = 2
	offSeed     = offOperands + OperandCount*4
)

// Header is the P4calc header. Integers are int32 and travel big-endian in
// two's complement; values wider than 32 bits must be converted by the caller
// with a plain int32(x), which wraps instead of failing.
type Header struct {
	Marker   byte
	Op       Operation
	Operands [OperandCount]int32
	Seed     int32
}

// NewRequest returns a header with the P4calc marker set. Operands beyond
// len(operands) stay 0; more than OperandCount operands is an error.
func NewRequest(op Operation, operands []int32, seed int32) (Header, error) {
	if len(operands) > OperandCount {
		return Header{}, fmt.Errorf("%w: %d operands, at most %d", core.ErrInvalidRequest, len(operands), OperandCount)
	}
	h := Header{Marker: Marker, Op: op, Seed: seed}
	copy(h.Operands[:], operands)
	return h, nil
}

// IsP4calc reports whether the marker matches.
func (h Header) IsP4calc() bool {
	return h.Marker == Marker
}

// Encode returns the 46-byte wire form of h. It never fails.
func Encode(h Header) []byte {
	b := make([]byte, HeaderLen)
	h.put(b)
	return b
}

func (h Header) put(b []byte) {
	b[offMarker] = h.Marker
	b[offOp] = byte(h.Op)
	for i, v := range h.Operands {
		binary.BigEndian.PutUint32(b[offOperands+i*4:], uint32(v))
	}
	binary.BigEndian.PutUint32(b[offSeed:], uint32(h.Seed))
}

// Decode parses the first HeaderLen bytes of data. Trailing bytes are ignored
// and the marker is not checked.
func Decode(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", core.ErrMalformedHeader, len(data), HeaderLen)
	}

	h := Header{
		Marker: data[offMarker],
		Op:     Operation(data[offOp]),
		Seed:   int32(binary.BigEndian.Uint32(data[offSeed:])),
	}
	for i := range h.Operands {
		h.Operands[i] = int32(binary.BigEndian.Uint32(data[offOperands+i*4:]))
	}
	return h, nil
}

// String renders the header one field per line.
func (h Header) String() string {
	var sb strings.Builder
	sb.WriteString("###[ P4calc ]###\n")
	fmt.Fprintf(&sb, "  p    = %q\n", string(rune(h.Marker)))
	fmt.Fprintf(&sb, "  op   = %q\n", h.Op.String())
	for i, v := range h.Operands {
		fmt.Fprintf(&sb, "  t_%d  = %d\n", i, v)
	}
	fmt.Fprintf(&sb, "  seed = %d\n", h.Seed)
	return sb.String()
}
