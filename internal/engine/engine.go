// Package engine makes the per-frame switching decision: learn, authorize,
// replicate sentences to subscribers, or switch on L2.
package engine

import (
	"errors"
	"unicode/utf8"

	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/core/decoder"
	"firestige.xyz/shipswitch/internal/fdb"
	"firestige.xyz/shipswitch/internal/forge"
	"firestige.xyz/shipswitch/internal/log"
	"firestige.xyz/shipswitch/internal/metrics"
	"firestige.xyz/shipswitch/internal/nmea"
	"firestige.xyz/shipswitch/internal/policy"
)

// Engine is driven by the dispatcher goroutine only.
type Engine struct {
	policy   *policy.Table
	fdb      *fdb.Table
	metrics  *metrics.SwitchMetrics
	counters []metrics.NodeCounters // by port
	logger   log.Logger
}

// New creates an engine over the node table and forwarding database.
func New(tbl *policy.Table, db *fdb.Table, m *metrics.SwitchMetrics) *Engine {
	e := &Engine{
		policy:   tbl,
		fdb:      db,
		metrics:  m,
		counters: make([]metrics.NodeCounters, tbl.Len()),
		logger:   log.GetLogger().WithField("component", "engine"),
	}
	for _, n := range tbl.Nodes() {
		e.counters[n.Port] = m.ForNode(n.Name)
	}
	return e
}

// Ports returns the number of switch ports.
func (e *Engine) Ports() int {
	return e.policy.Len()
}

// FDB returns the forwarding database.
func (e *Engine) FDB() *fdb.Table {
	return e.fdb
}

// Process handles one frame received on ingress and appends the resulting
// traffic items to q. raw is only read; every queued item owns its bytes, so
// the caller may release raw's buffer as soon as Process returns.
func (e *Engine) Process(ingress int, raw []byte, q *Queue) {
	if ingress < 0 || ingress >= len(e.counters) {
		return
	}
	c := e.counters[ingress]

	h, err := decoder.Decode(raw)
	if errors.Is(err, core.ErrRuntFrame) {
		c.RuntDropped.Inc()
		if e.logger.IsDebugEnabled() {
			e.logger.Debugf("port %d: runt frame of %d bytes dropped", ingress, len(raw))
		}
		return
	}
	if err != nil {
		// Still switchable on its MACs.
		c.DecodeErrors.Inc()
		if e.logger.IsDebugEnabled() {
			e.logger.WithError(err).Debugf("port %d: header decode failed", ingress)
		}
	}

	if e.fdb.Observe(h.Ethernet.SrcMAC, ingress) {
		c.Learned.Inc()
		e.metrics.FDBEntries.Set(float64(e.fdb.Len()))
		e.logger.WithField("mac", h.Ethernet.SrcMAC.String()).WithField("port", ingress).Info("learned address")
	}

	if h.IsUDP() && utf8.Valid(h.Payload) {
		if msg, err := nmea.Parse(string(h.Payload)); err == nil {
			e.multicast(ingress, raw, msg.Prefix(), q)
			return
		}
	}

	e.switchFrame(ingress, raw, h.Ethernet.DstMAC, q)
}

// multicast delivers a rewritten copy of a sentence frame to every other node
// subscribed to prefix whose address is learned. It never floods.
func (e *Engine) multicast(ingress int, raw []byte, prefix string, q *Queue) {
	if err := e.policy.Authorize(ingress, prefix); err != nil {
		e.counters[ingress].PolicyDropped.Inc()
		if e.logger.IsDebugEnabled() {
			e.logger.WithError(err).Debug("sentence dropped")
		}
		return
	}

	for _, rcv := range e.policy.Receivers(prefix, ingress) {
		rc := e.counters[rcv.Port]

		port, ok := e.fdb.Lookup(rcv.MAC)
		if !ok {
			rc.MulticastSkipped.Inc()
			if e.logger.IsDebugEnabled() {
				e.logger.Debugf("%s -> %s: mac %s not learned, skipped", prefix, rcv.Name, rcv.MAC)
			}
			continue
		}
		if port == ingress {
			// Learned behind the sender's own port.
			rc.MulticastSkipped.Inc()
			if e.logger.IsDebugEnabled() {
				e.logger.Debugf("%s -> %s: mac %s is on the ingress port, skipped", prefix, rcv.Name, rcv.MAC)
			}
			continue
		}

		data, err := forge.Forge(raw, rcv)
		if err != nil {
			rc.ForgeFailed.Inc()
			e.logger.WithError(err).Warnf("%s -> %s: rewrite failed", prefix, rcv.Name)
			continue
		}

		q.Push(core.TrafficItem{Port: port, Data: data, NMEA: true, Prefix: prefix})
		rc.MulticastQueued.Inc()
		if e.logger.IsDebugEnabled() {
			e.logger.Debugf("%s -> %s (%s, %s) on port %d", prefix, rcv.Name, rcv.MAC, rcv.IP, port)
		}
	}
}

// switchFrame forwards raw unmodified to the learned port of dst, or floods it
// to every port except ingress. All items share one copy of raw.
func (e *Engine) switchFrame(ingress int, raw []byte, dst core.MAC, q *Queue) {
	c := e.counters[ingress]

	if port, ok := e.fdb.Lookup(dst); ok {
		if port == ingress {
			// Destination sits behind the ingress port.
			return
		}
		q.Push(core.TrafficItem{Port: port, Data: clone(raw), NMEA: false, Prefix: core.NonNMEAPrefix})
		c.Forwarded.Inc()
		return
	}

	if e.Ports() < 2 {
		return
	}
	data := clone(raw)
	for port := 0; port < e.Ports(); port++ {
		if port == ingress {
			continue
		}
		q.Push(core.TrafficItem{Port: port, Data: data, NMEA: false, Prefix: core.NonNMEAPrefix})
	}
	c.Flooded.Inc()
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
