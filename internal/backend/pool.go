package backend

import "fmt"

// Handle addresses one chunk of a Pool.
type Handle uint32

// Pool is a fixed arena of equally sized chunks addressed by Handle. It is
// not safe for concurrent Acquire/Release; Bytes of distinct handles may be
// used from different goroutines.
type Pool struct {
	chunkSize int
	mem       []byte
	free      []Handle
	inUse     []bool
}

// NewPool allocates numChunks chunks of chunkSize bytes, all free.
func NewPool(numChunks, chunkSize int) *Pool {
	p := &Pool{
		chunkSize: chunkSize,
		mem:       make([]byte, numChunks*chunkSize),
		free:      make([]Handle, numChunks),
		inUse:     make([]bool, numChunks),
	}
	// Pop from the tail hands out low handles first.
	for i := range p.free {
		p.free[i] = Handle(numChunks - 1 - i)
	}
	return p
}

// Acquire takes a free chunk.
func (p *Pool) Acquire() (Handle, bool) {
	n := len(p.free)
	if n == 0 {
		return 0, false
	}
	h := p.free[n-1]
	p.free = p.free[:n-1]
	p.inUse[h] = true
	return h, true
}

// Release returns a chunk. Releasing a chunk that is already free panics.
func (p *Pool) Release(h Handle) {
	if int(h) >= len(p.inUse) || !p.inUse[h] {
		panic(fmt.Sprintf("backend: release of free chunk %d", h))
	}
	p.inUse[h] = false
	p.free = append(p.free, h)
}

// Bytes returns the full chunk for h.
func (p *Pool) Bytes(h Handle) []byte {
	off := int(h) * p.chunkSize
	return p.mem[off : off+p.chunkSize : off+p.chunkSize]
}

// Free returns the number of free chunks.
func (p *Pool) Free() int { return len(p.free) }

// Cap returns the total number of chunks.
func (p *Pool) Cap() int { return len(p.inUse) }

// ChunkSize returns the size of every chunk.
func (p *Pool) ChunkSize() int { return p.chunkSize }
