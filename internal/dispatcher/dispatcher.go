// Package dispatcher runs the single-goroutine switch loop over a backend.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/engine"
	"firestige.xyz/shipswitch/internal/log"
	"firestige.xyz/shipswitch/internal/metrics"
	"firestige.xyz/shipswitch/internal/policy"
)

const (
	defaultQueueCapacity = 256
	pollErrorBackoff     = 100 * time.Millisecond
)

// Dispatcher owns the iteration queue and is not safe for concurrent use.
type Dispatcher struct {
	backend     backend.Backend
	engine      *engine.Engine
	counters    []metrics.NodeCounters // by port
	pollTimeout time.Duration
	queue       *engine.Queue
	logger      log.Logger
}

// New binds an engine to a backend. The backend must have one port per node.
// A zero pollTimeout makes Poll wait until traffic arrives or ctx ends.
func New(b backend.Backend, e *engine.Engine, tbl *policy.Table, m *metrics.SwitchMetrics, pollTimeout time.Duration) (*Dispatcher, error) {
	if b.Ports() != tbl.Len() || e.Ports() != tbl.Len() {
		return nil, errors.New("dispatcher: backend ports do not match the node table")
	}

	d := &Dispatcher{
		backend:     b,
		engine:      e,
		counters:    make([]metrics.NodeCounters, tbl.Len()),
		pollTimeout: pollTimeout,
		queue:       engine.NewQueue(defaultQueueCapacity),
		logger:      log.GetLogger().WithField("component", "dispatcher"),
	}
	for _, n := range tbl.Nodes() {
		d.counters[n.Port] = m.ForNode(n.Name)
	}
	return d, nil
}

// Run iterates until ctx is cancelled, which is the only way it returns.
// Poll errors are logged and the loop goes on.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Infof("dispatcher running on %d ports", d.backend.Ports())
	for {
		if err := d.Iterate(ctx); err != nil {
			if ctx.Err() != nil {
				d.logger.Info("dispatcher stopped")
				return ctx.Err()
			}
			d.logger.WithError(err).Error("poll failed")
			select {
			case <-ctx.Done():
			case <-time.After(pollErrorBackoff):
			}
		}
	}
}

// Iterate runs one iteration: wait for readiness, drain every ready port in
// port order through the engine, transmit the queue, then recycle buffers on
// every port. It returns the Poll error, if any, after recycling.
func (d *Dispatcher) Iterate(ctx context.Context) error {
	ready, err := d.backend.Poll(ctx, d.pollTimeout)
	if err == nil {
		for _, port := range ready {
			d.drain(port)
		}
		d.transmit()
	}
	d.recycle()
	return err
}

func (d *Dispatcher) drain(port int) {
	for d.backend.HasMore(port) {
		if !d.receiveOne(port) {
			return
		}
	}
}

// receiveOne processes a single frame. The release is deferred so the buffer
// goes back on every path out of the engine.
func (d *Dispatcher) receiveOne(port int) bool {
	f, ok := d.backend.ReceiveNext(port)
	if !ok {
		return false
	}
	defer d.backend.ReleaseReceive(port, f)

	d.engine.Process(port, f.Data, d.queue)
	return true
}

func (d *Dispatcher) transmit() {
	for _, item := range d.queue.Items() {
		c := d.counters[item.Port]
		if err := d.backend.Transmit(item.Port, item.Data); err != nil {
			if errors.Is(err, core.ErrNoBuffer) {
				c.TxNoBuffer.Inc()
			} else {
				c.TxFailed.Inc()
			}
			if d.logger.IsDebugEnabled() {
				d.logger.WithError(err).Debugf("port %d: transmit of %s failed", item.Port, item.Prefix)
			}
			continue
		}
		c.TxSent.Inc()
		if item.NMEA {
			c.MulticastSent.Inc()
		}
	}
	d.queue.Reset()
}

func (d *Dispatcher) recycle() {
	n := d.backend.Ports()
	for port := 0; port < n; port++ {
		d.backend.ReclaimTransmit(port)
	}
	for port := 0; port < n; port++ {
		d.backend.ReplenishReceive(port)
	}
}
