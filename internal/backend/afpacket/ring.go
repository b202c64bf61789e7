package afpacket

import (
	"fmt"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/shipswitch/internal/core"
)

const (
	tpacketAlignment = 16
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded up
	maxBlockSize     = 4 << 20
)

// recomputeSize lays out a TPACKET_V3 ring of roughly bufferMB megabytes.
// frameSize is the aligned header plus snapLen. blockSize is a multiple of
// the page size, and of frameSize unless that would exceed maxBlockSize.
func recomputeSize(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	switch {
	case bufferMB <= 0:
		return 0, 0, 0, fmt.Errorf("%w: buffer_size_mb must be positive, got %d", core.ErrConfigInvalid, bufferMB)
	case snapLen <= 0:
		return 0, 0, 0, fmt.Errorf("%w: snap_len must be positive, got %d", core.ErrConfigInvalid, snapLen)
	case pageSize <= 0 || pageSize%tpacketAlignment != 0 || pageSize&(pageSize-1) != 0:
		return 0, 0, 0, fmt.Errorf("%w: page size %d is not a power of two multiple of %d", core.ErrConfigInvalid, pageSize, tpacketAlignment)
	}

	frameSize = align(tpacketHdrLen+snapLen, tpacketAlignment)
	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// V3 packs frames of any length into a block; only page alignment is mandatory.
		blockSize = maxBlockSize / pageSize * pageSize
	}
	numBlocks = max((bufferMB<<20)/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func align(n, to int) int {
	return (n + to - 1) / to * to
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
	return a / gcd(a, b) * b
}

// outgoingFilter accepts up to snapLen bytes of every frame the kernel did
// not send itself, so our own transmits are never read back as ingress.
func outgoingFilter(snapLen int) ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: unix.PACKET_OUTGOING, SkipTrue: 1},
		bpf.RetConstant{Val: uint32(snapLen)},
		bpf.RetConstant{Val: 0},
	})
}
