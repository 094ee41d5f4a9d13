//go:build !linux

package link

import (
	"fmt"

	"firestige.xyz/p4calc/internal/core"
)

func newAFPacketOpener(AFPacketOptions) (Opener, error) {
	return nil, fmt.Errorf("%w: afpacket requires linux", core.ErrUnsupportedDriver)
}
