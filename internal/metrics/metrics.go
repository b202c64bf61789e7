// Package metrics implements Prometheus metrics.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shipswitch"

// Counter names, also the keys of Summarize.
const (
	Learned          = "learned"
	PolicyDropped    = "policy_dropped"
	MulticastQueued  = "multicast_queued"
	MulticastSent    = "multicast_sent"
	MulticastSkipped = "multicast_skipped"
	ForgeFailed      = "forge_failed"
	Flooded          = "flooded"
	Forwarded        = "forwarded"
	TxSent           = "tx_sent"
	TxFailed         = "tx_failed"
	TxNoBuffer       = "tx_no_buffer"
	RuntDropped      = "runt_dropped"
	DecodeErrors     = "decode_errors"
)

var counterHelp = map[string]string{
	Learned:          "Source MAC addresses learned on the node's port",
	PolicyDropped:    "Sentences from the node dropped because it may not send their prefix",
	MulticastQueued:  "Rewritten sentence copies queued for the node",
	MulticastSent:    "Rewritten sentence copies transmitted to the node",
	MulticastSkipped: "Sentence copies not sent because the node's MAC is not learned yet",
	ForgeFailed:      "Sentence copies for the node that could not be rewritten",
	Flooded:          "Non-sentence frames from the node flooded to unknown destinations",
	Forwarded:        "Non-sentence frames from the node forwarded to a learned port",
	TxSent:           "Frames transmitted on the node's port",
	TxFailed:         "Frames the backend failed to transmit on the node's port",
	TxNoBuffer:       "Frames dropped for lack of a transmit buffer on the node's port",
	RuntDropped:      "Frames from the node shorter than two MAC addresses",
	DecodeErrors:     "Frames from the node with malformed or truncated IPv4/UDP headers",
}

// SwitchMetrics holds the per-node counters of one switch instance.
type SwitchMetrics struct {
	counters   map[string]*prometheus.CounterVec
	FDBEntries prometheus.Gauge
}

// NewSwitchMetrics registers the counters on reg. Tests pass a fresh
// prometheus.NewRegistry() so instances never collide.
func NewSwitchMetrics(reg prometheus.Registerer) *SwitchMetrics {
	factory := promauto.With(reg)

	m := &SwitchMetrics{
		counters: make(map[string]*prometheus.CounterVec, len(counterHelp)),
		FDBEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fdb_entries",
			Help:      "MAC addresses in the forwarding database",
		}),
	}
	for name, help := range counterHelp {
		m.counters[name] = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name + "_total",
				Help:      help,
			},
			[]string{"node"},
		)
	}
	return m
}

// Vec returns the counter vector for name, or nil.
func (m *SwitchMetrics) Vec(name string) *prometheus.CounterVec {
	return m.counters[name]
}

// NodeCounters are the counters of one node, curried once so the per-frame
// path does no label lookups.
type NodeCounters struct {
	Learned          prometheus.Counter
	PolicyDropped    prometheus.Counter
	MulticastQueued  prometheus.Counter
	MulticastSent    prometheus.Counter
	MulticastSkipped prometheus.Counter
	ForgeFailed      prometheus.Counter
	Flooded          prometheus.Counter
	Forwarded        prometheus.Counter
	TxSent           prometheus.Counter
	TxFailed         prometheus.Counter
	TxNoBuffer       prometheus.Counter
	RuntDropped      prometheus.Counter
	DecodeErrors     prometheus.Counter
}

// ForNode returns the counters labelled with node. Every counter is created,
// so all series are exported at zero from startup.
func (m *SwitchMetrics) ForNode(node string) NodeCounters {
	c := func(name string) prometheus.Counter {
		return m.counters[name].WithLabelValues(node)
	}
	return NodeCounters{
		Learned:          c(Learned),
		PolicyDropped:    c(PolicyDropped),
		MulticastQueued:  c(MulticastQueued),
		MulticastSent:    c(MulticastSent),
		MulticastSkipped: c(MulticastSkipped),
		ForgeFailed:      c(ForgeFailed),
		Flooded:          c(Flooded),
		Forwarded:        c(Forwarded),
		TxSent:           c(TxSent),
		TxFailed:         c(TxFailed),
		TxNoBuffer:       c(TxNoBuffer),
		RuntDropped:      c(RuntDropped),
		DecodeErrors:     c(DecodeErrors),
	}
}

// CounterNames returns the counter names sorted.
func CounterNames() []string {
	names := make([]string, 0, len(counterHelp))
	for name := range counterHelp {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize gathers g and returns node -> counter name -> value for the
// switch counters.
func Summarize(g prometheus.Gatherer) (map[string]map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	prefix := namespace + "_"
	out := make(map[string]map[string]float64)
	for _, mf := range families {
		counter := strings.TrimSuffix(strings.TrimPrefix(mf.GetName(), prefix), "_total")
		if _, ok := counterHelp[counter]; !ok {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() != "node" {
					continue
				}
				node := lp.GetValue()
				if out[node] == nil {
					out[node] = make(map[string]float64)
				}
				out[node][counter] = metric.GetCounter().GetValue()
			}
		}
	}
	return out, nil
}
