// Package backend defines the per-port packet I/O contract the dispatcher
// drives, plus the buffer arena shared by its implementations.
package backend

import (
	"context"
	"time"
)

// Frame is a received frame. Data aliases the backend's buffer chunk and is
// valid only until the frame is released with ReleaseReceive.
type Frame struct {
	Handle Handle
	Data   []byte
}

// Backend is a zero-copy style packet I/O backend with one port per node.
//
// All methods except Close are called from a single goroutine. The call
// order per iteration is Poll, ReceiveNext/HasMore/ReleaseReceive on ready
// ports, Transmit, then ReclaimTransmit and ReplenishReceive on every port.
type Backend interface {
	// Ports returns the number of ports; ports are numbered 0..Ports()-1.
	Ports() int

	// Poll blocks until at least one port has received frames, timeout
	// elapses or ctx is done. A zero timeout waits without limit. Ready
	// ports are returned in ascending order; an empty result means timeout.
	Poll(ctx context.Context, timeout time.Duration) ([]int, error)

	// ReceiveNext takes the next received frame from port.
	ReceiveNext(port int) (Frame, bool)

	// HasMore reports whether port has received frames pending.
	HasMore(port int) bool

	// ReleaseReceive hands a frame's buffer back. Each received frame must be
	// released exactly once.
	ReleaseReceive(port int, f Frame)

	// Transmit copies data into a transmit buffer and sends it on port.
	// It fails with core.ErrNoBuffer or core.ErrTransmitFailed.
	Transmit(port int, data []byte) error

	// ReclaimTransmit returns completed transmit buffers to the free pool.
	ReclaimTransmit(port int)

	// ReplenishReceive returns released receive buffers to the fill queue,
	// overflowing to the free pool, and tops the fill queue up.
	ReplenishReceive(port int)

	Close() error
}
