// Package memory implements an in-process backend with AF_XDP style rings.
// Frames enter through Inject and leave into a per-port record read by Sent.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/core"
)

// Options sizes each port's buffer arena.
type Options struct {
	NumFrames int // chunks per port; half of them back the fill ring
	FrameSize int // bytes per chunk
}

type port struct {
	pool     *backend.Pool
	fill     *backend.Ring
	rx       *backend.Ring
	tx       *backend.Ring
	comp     *backend.Ring
	released []backend.Handle
	sent     [][]byte
	linkDown bool
	rxDrops  int
}

// Backend is safe for one dispatcher goroutine plus concurrent Inject calls.
type Backend struct {
	mu     sync.Mutex
	ports  []*port
	notify chan struct{}
	closed bool
}

var _ backend.Backend = (*Backend)(nil)

// New creates n ports, each with its fill ring primed.
func New(n int, opts Options) *Backend {
	if opts.NumFrames <= 0 {
		opts.NumFrames = 64
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = 2048
	}
	fillSize := opts.NumFrames / 2
	if fillSize == 0 {
		fillSize = 1
	}

	b := &Backend{
		ports:  make([]*port, n),
		notify: make(chan struct{}, 1),
	}
	for i := range b.ports {
		p := &port{
			pool: backend.NewPool(opts.NumFrames, opts.FrameSize),
			fill: backend.NewRing(fillSize),
			rx:   backend.NewRing(opts.NumFrames),
			tx:   backend.NewRing(opts.NumFrames),
			comp: backend.NewRing(opts.NumFrames),
		}
		topUpFill(p)
		b.ports[i] = p
	}
	return b
}

func topUpFill(p *port) {
	for !p.fill.Full() {
		h, ok := p.pool.Acquire()
		if !ok {
			return
		}
		p.fill.Push(backend.Desc{Handle: h})
	}
}

func (b *Backend) Ports() int { return len(b.ports) }

// Inject delivers data to port as if it arrived from the wire. It fails with
// core.ErrNoBuffer when the port's fill ring is empty, which a real NIC would
// count as an rx drop.
func (b *Backend) Inject(portIdx int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return err
	}
	if len(data) > p.pool.ChunkSize() {
		return fmt.Errorf("%w: frame of %d bytes exceeds chunk size %d", core.ErrTransmitFailed, len(data), p.pool.ChunkSize())
	}
	d, ok := p.fill.Pop()
	if !ok {
		p.rxDrops++
		return core.ErrNoBuffer
	}
	d.Len = copy(p.pool.Bytes(d.Handle), data)
	p.rx.Push(d)

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *Backend) Poll(ctx context.Context, timeout time.Duration) ([]int, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		if ready := b.ready(); len(ready) > 0 {
			return ready, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, nil
		case <-b.notify:
		}
	}
}

func (b *Backend) ready() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ready []int
	for i, p := range b.ports {
		if p.rx.Len() > 0 {
			ready = append(ready, i)
		}
	}
	return ready
}

func (b *Backend) ReceiveNext(portIdx int) (backend.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return backend.Frame{}, false
	}
	d, ok := p.rx.Pop()
	if !ok {
		return backend.Frame{}, false
	}
	return backend.Frame{Handle: d.Handle, Data: p.pool.Bytes(d.Handle)[:d.Len]}, true
}

func (b *Backend) HasMore(portIdx int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	return err == nil && p.rx.Len() > 0
}

func (b *Backend) ReleaseReceive(portIdx int, f backend.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, err := b.port(portIdx); err == nil {
		p.released = append(p.released, f.Handle)
	}
}

// Transmit copies data into a chunk, queues it on the tx ring and completes
// it at once, recording a copy for Sent.
func (b *Backend) Transmit(portIdx int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return err
	}
	if p.linkDown {
		return fmt.Errorf("%w: port %d link down", core.ErrTransmitFailed, portIdx)
	}
	if len(data) > p.pool.ChunkSize() {
		return fmt.Errorf("%w: frame of %d bytes exceeds chunk size %d", core.ErrTransmitFailed, len(data), p.pool.ChunkSize())
	}

	h, ok := p.pool.Acquire()
	if !ok {
		return core.ErrNoBuffer
	}
	n := copy(p.pool.Bytes(h), data)
	if !p.tx.Push(backend.Desc{Handle: h, Len: n}) {
		p.pool.Release(h)
		return core.ErrNoBuffer
	}

	// The wire: drain tx into the completion ring.
	for {
		d, ok := p.tx.Pop()
		if !ok {
			break
		}
		p.sent = append(p.sent, append([]byte(nil), p.pool.Bytes(d.Handle)[:d.Len]...))
		p.comp.Push(d)
	}
	return nil
}

func (b *Backend) ReclaimTransmit(portIdx int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return
	}
	for {
		d, ok := p.comp.Pop()
		if !ok {
			return
		}
		p.pool.Release(d.Handle)
	}
}

func (b *Backend) ReplenishReceive(portIdx int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return
	}
	for _, h := range p.released {
		if !p.fill.Push(backend.Desc{Handle: h}) {
			p.pool.Release(h)
		}
	}
	p.released = p.released[:0]
	topUpFill(p)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Sent returns copies of the frames transmitted on port, oldest first.
func (b *Backend) Sent(portIdx int) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return nil
	}
	return append([][]byte(nil), p.sent...)
}

// ResetSent forgets the transmit record of every port.
func (b *Backend) ResetSent() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.ports {
		p.sent = nil
	}
}

// SetLinkDown makes Transmit on port fail with core.ErrTransmitFailed.
func (b *Backend) SetLinkDown(portIdx int, down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, err := b.port(portIdx); err == nil {
		p.linkDown = down
	}
}

// PortStats is a snapshot of one port's buffer accounting.
type PortStats struct {
	Free     int // chunks in the free pool
	Fill     int // chunks waiting for received data
	Rx       int // received, not yet taken
	Released int // released, not yet replenished
	Comp     int // transmitted, not yet reclaimed
	Total    int
	RxDrops  int
}

// Stats returns the buffer accounting of port.
func (b *Backend) Stats(portIdx int) PortStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIdx)
	if err != nil {
		return PortStats{}
	}
	return PortStats{
		Free:     p.pool.Free(),
		Fill:     p.fill.Len(),
		Rx:       p.rx.Len(),
		Released: len(p.released),
		Comp:     p.comp.Len(),
		Total:    p.pool.Cap(),
		RxDrops:  p.rxDrops,
	}
}

func (b *Backend) port(i int) (*port, error) {
	if b.closed {
		return nil, fmt.Errorf("%w: backend closed", core.ErrTransmitFailed)
	}
	if i < 0 || i >= len(b.ports) {
		return nil, fmt.Errorf("%w: no port %d", core.ErrTransmitFailed, i)
	}
	return b.ports[i], nil
}
