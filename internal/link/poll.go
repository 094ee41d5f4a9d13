package link

import (
	"context"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/p4calc/internal/log"
)

// packetReader is satisfied by afpacket.TPacket and pcap.Handle.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// pollMatching reads frames until match accepts one or ctx is done. The
// reader must return periodically (poll/read timeout) so ctx is observed;
// isTimeout recognizes those wake-ups.
func pollMatching(ctx context.Context, r packetReader, isTimeout func(error) bool, match Predicate) (*layers.Ethernet, error) {
	dec := newFrameDecoder()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, ci, err := r.ReadPacketData()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, err
		}

		eth, ok := dec.decode(data)
		if !ok {
			log.GetLogger().Debugf("dropped undecodable frame of %d bytes", ci.CaptureLength)
			continue
		}
		if match == nil || match(eth) {
			return eth, nil
		}
	}
}
