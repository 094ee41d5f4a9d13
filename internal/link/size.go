package link

import (
	"fmt"
)

// recomputeSize derives TPACKET_V3 ring geometry from a memory budget.
//
// PACKET_MMAP requires:
//  1. frameSize is a multiple of TPACKET_ALIGNMENT (16 bytes)
//  2. blockSize is a multiple of pageSize
//  3. blockSize is a multiple of frameSize
//
// blockSize * numBlocks approximates bufferSizeMB.
func recomputeSize(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52 // TPACKET3_HDRLEN, approximate

	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("bufferSizeMB must be positive, got %d", bufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snapLen must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("pageSize must be positive and multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	const maxBlockSize = 4 * 1024 * 1024
	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// Page-align the frame so one frame per block always satisfies 2 and 3.
		frameSize = alignUp(frameSize, pageSize)
		blockSize = frameSize
	}

	numBlocks = (bufferSizeMB * 1024 * 1024) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return ((n + align - 1) / align) * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return (a / gcd(a, b)) * b
}
