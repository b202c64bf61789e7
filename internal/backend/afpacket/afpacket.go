// Package afpacket implements the backend over one AF_PACKET socket per node
// interface. A reader goroutine per port copies frames into arena chunks the
// dispatcher hands it through a fill channel; everything else runs on the
// dispatcher goroutine.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/log"
)

// Options configures every port alike.
type Options struct {
	Ifaces       []string // one per node, in port order
	FrameSize    int      // arena chunk size
	NumFrames    int      // chunks per port
	SnapLen      int
	BufferSizeMB int
	ReadTimeout  time.Duration // bounds how long Close waits for readers
}

type port struct {
	iface string
	tp    *afpacket.TPacket

	// Owned by the dispatcher goroutine.
	pool     *backend.Pool
	released []backend.Handle
	comp     []backend.Handle

	// Shared with the reader goroutine.
	fill  chan backend.Handle
	rx    chan backend.Desc
	drops atomic.Uint64
}

type Backend struct {
	ports  []*port
	notify chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger log.Logger
}

var _ backend.Backend = (*Backend)(nil)

// New opens a socket on every interface and starts its reader.
func New(opts Options) (*Backend, error) {
	if len(opts.Ifaces) == 0 {
		return nil, fmt.Errorf("%w: afpacket backend needs at least one interface", core.ErrConfigInvalid)
	}
	if opts.NumFrames < 2 || opts.FrameSize <= 0 {
		return nil, fmt.Errorf("%w: afpacket backend needs num_frames >= 2 and a positive frame_size", core.ErrConfigInvalid)
	}
	if opts.SnapLen <= 0 || opts.SnapLen > opts.FrameSize {
		opts.SnapLen = opts.FrameSize
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	frameSize, blockSize, numBlocks, err := recomputeSize(opts.BufferSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}
	filter, err := outgoingFilter(opts.SnapLen)
	if err != nil {
		return nil, fmt.Errorf("assemble outgoing filter: %w", err)
	}

	b := &Backend{
		ports:  make([]*port, 0, len(opts.Ifaces)),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		logger: log.GetLogger().WithField("component", "afpacket"),
	}
	for _, iface := range opts.Ifaces {
		tp, err := afpacket.NewTPacket(
			afpacket.OptInterface(iface),
			afpacket.OptFrameSize(frameSize),
			afpacket.OptBlockSize(blockSize),
			afpacket.OptNumBlocks(numBlocks),
			afpacket.OptPollTimeout(opts.ReadTimeout),
			afpacket.SocketRaw,
			afpacket.TPacketVersion3,
		)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open %s: %w", iface, err)
		}
		if err := tp.SetBPF(filter); err != nil {
			tp.Close()
			b.Close()
			return nil, fmt.Errorf("set filter on %s: %w", iface, err)
		}

		p := &port{
			iface: iface,
			tp:    tp,
			pool:  backend.NewPool(opts.NumFrames, opts.FrameSize),
			fill:  make(chan backend.Handle, opts.NumFrames/2),
			rx:    make(chan backend.Desc, opts.NumFrames),
		}
		p.topUp()
		b.ports = append(b.ports, p)
	}

	for i, p := range b.ports {
		b.wg.Add(1)
		go b.read(i, p)
	}
	b.logger.Infof("afpacket backend open on %v (frame %d, block %d x %d)", opts.Ifaces, frameSize, blockSize, numBlocks)
	return b, nil
}

// read runs until Close. Frames that find no fill chunk are dropped.
func (b *Backend) read(idx int, p *port) {
	defer b.wg.Done()
	for {
		select {
		case <-b.stop:
			return
		default:
		}

		data, _, err := p.tp.ZeroCopyReadPacketData()
		if err != nil {
			if errors.Is(err, afpacket.ErrTimeout) {
				continue
			}
			select {
			case <-b.stop:
				return
			default:
			}
			b.logger.WithError(err).Warnf("port %d (%s): read failed", idx, p.iface)
			continue
		}

		var h backend.Handle
		select {
		case h = <-p.fill:
		default:
			p.drops.Add(1)
			continue
		}
		n := copy(p.pool.Bytes(h), data)
		p.rx <- backend.Desc{Handle: h, Len: n}

		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
}

func (p *port) topUp() {
	for len(p.fill) < cap(p.fill) {
		h, ok := p.pool.Acquire()
		if !ok {
			return
		}
		p.fill <- h
	}
}

func (b *Backend) Ports() int { return len(b.ports) }

func (b *Backend) Poll(ctx context.Context, timeout time.Duration) ([]int, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		var ready []int
		for i, p := range b.ports {
			if len(p.rx) > 0 {
				ready = append(ready, i)
			}
		}
		if len(ready) > 0 {
			return ready, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.stop:
			return nil, fmt.Errorf("%w: backend closed", core.ErrTransmitFailed)
		case <-timer:
			return nil, nil
		case <-b.notify:
		}
	}
}

func (b *Backend) ReceiveNext(portIdx int) (backend.Frame, bool) {
	p := b.ports[portIdx]
	select {
	case d := <-p.rx:
		return backend.Frame{Handle: d.Handle, Data: p.pool.Bytes(d.Handle)[:d.Len]}, true
	default:
		return backend.Frame{}, false
	}
}

func (b *Backend) HasMore(portIdx int) bool {
	return len(b.ports[portIdx].rx) > 0
}

func (b *Backend) ReleaseReceive(portIdx int, f backend.Frame) {
	p := b.ports[portIdx]
	p.released = append(p.released, f.Handle)
}

// Transmit sends synchronously; the chunk completes as soon as the write
// returns and is reclaimed on the next ReclaimTransmit.
func (b *Backend) Transmit(portIdx int, data []byte) error {
	p := b.ports[portIdx]
	if len(data) > p.pool.ChunkSize() {
		return fmt.Errorf("%w: frame of %d bytes exceeds chunk size %d", core.ErrTransmitFailed, len(data), p.pool.ChunkSize())
	}
	h, ok := p.pool.Acquire()
	if !ok {
		return core.ErrNoBuffer
	}
	n := copy(p.pool.Bytes(h), data)
	p.comp = append(p.comp, h)
	if err := p.tp.WritePacketData(p.pool.Bytes(h)[:n]); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrTransmitFailed, p.iface, err)
	}
	return nil
}

func (b *Backend) ReclaimTransmit(portIdx int) {
	p := b.ports[portIdx]
	for _, h := range p.comp {
		p.pool.Release(h)
	}
	p.comp = p.comp[:0]
}

func (b *Backend) ReplenishReceive(portIdx int) {
	p := b.ports[portIdx]
	for _, h := range p.released {
		select {
		case p.fill <- h:
		default:
			p.pool.Release(h)
		}
	}
	p.released = p.released[:0]
	p.topUp()
}

// Drops returns the frames port dropped for want of a fill chunk.
func (b *Backend) Drops(portIdx int) uint64 {
	return b.ports[portIdx].drops.Load()
}

// Close stops the readers and closes every socket. It is safe to call twice.
func (b *Backend) Close() error {
	b.once.Do(func() {
		close(b.stop)
		b.wg.Wait()
		for i, p := range b.ports {
			if _, v3, err := p.tp.SocketStats(); err == nil {
				b.logger.Infof("port %d (%s): %d packets, %d kernel drops, %d fill drops",
					i, p.iface, v3.Packets(), v3.Drops(), p.drops.Load())
			}
			p.tp.Close()
		}
	})
	return nil
}
