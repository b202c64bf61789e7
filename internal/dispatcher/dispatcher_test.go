package dispatcher

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/backend/memory"
	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/core/decoder"
	"firestige.xyz/shipswitch/internal/engine"
	"firestige.xyz/shipswitch/internal/fdb"
	"firestige.xyz/shipswitch/internal/metrics"
	"firestige.xyz/shipswitch/internal/policy"
	frames "firestige.xyz/shipswitch/internal/testutil"
)

var (
	macA = core.MAC{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	macB = core.MAC{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}
	macC = core.MAC{0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc}
	macX = core.MAC{0x02, 0, 0, 0, 0, 0x99}

	ipA   = netip.MustParseAddr("10.0.0.1")
	ipB   = netip.MustParseAddr("10.0.0.2")
	ipC   = netip.MustParseAddr("10.0.0.3")
	ipBcd = netip.MustParseAddr("10.0.0.255")
)

type harness struct {
	backend    *memory.Backend
	dispatcher *Dispatcher
	fdb        *fdb.Table
	metrics    *metrics.SwitchMetrics
}

func newHarness(t *testing.T, opts memory.Options) *harness {
	t.Helper()
	tbl, err := policy.NewTable([]policy.Node{
		{Port: 0, Name: "A", MAC: macA, IP: ipA, Sends: policy.NewPrefixSet("$IIHDT")},
		{Port: 1, Name: "B", MAC: macB, IP: ipB, Receives: policy.NewPrefixSet("$IIHDT")},
		{Port: 2, Name: "C", MAC: macC, IP: ipC},
	})
	require.NoError(t, err)

	m := metrics.NewSwitchMetrics(prometheus.NewRegistry())
	db := fdb.New()
	b := memory.New(tbl.Len(), opts)
	d, err := New(b, engine.New(tbl, db, m), tbl, m, 50*time.Millisecond)
	require.NoError(t, err)

	return &harness{backend: b, dispatcher: d, fdb: db, metrics: m}
}

func (h *harness) learnAll() {
	h.fdb.Observe(macA, 0)
	h.fdb.Observe(macB, 1)
	h.fdb.Observe(macC, 2)
}

func (h *harness) counter(name, node string) float64 {
	return testutil.ToFloat64(h.metrics.Vec(name).WithLabelValues(node))
}

func (h *harness) iterate(t *testing.T) {
	t.Helper()
	require.NoError(t, h.dispatcher.Iterate(context.Background()))
}

func (h *harness) assertBuffersConserved(t *testing.T) {
	t.Helper()
	for port := 0; port < h.backend.Ports(); port++ {
		s := h.backend.Stats(port)
		assert.Equal(t, s.Total, s.Free+s.Fill, "port %d: %+v", port, s)
		assert.Zero(t, s.Released+s.Comp+s.Rx, "port %d: %+v", port, s)
	}
}

func TestScenarioSentenceToSubscriber(t *testing.T) {
	h := newHarness(t, memory.Options{})
	h.learnAll()

	payload := make([]byte, 1460)
	copy(payload, "$IIHDT,33,T*44")
	require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, core.BroadcastMAC, ipA, ipBcd, payload)))
	h.iterate(t)

	assert.Empty(t, h.backend.Sent(0))
	assert.Empty(t, h.backend.Sent(2))
	sent := h.backend.Sent(1)
	require.Len(t, sent, 1)

	hdr, err := decoder.Decode(sent[0])
	require.NoError(t, err)
	assert.Equal(t, macB, hdr.Ethernet.DstMAC)
	assert.Equal(t, ipB, hdr.IPv4.DstIP)
	assert.Equal(t, payload, hdr.Payload)
	assert.NoError(t, decoder.VerifyChecksums(sent[0]))

	assert.Equal(t, 1.0, h.counter(metrics.MulticastSent, "B"))
	assert.Equal(t, 1.0, h.counter(metrics.TxSent, "B"))
	h.assertBuffersConserved(t)
}

func TestScenarioUnlearnedSubscriberNoFlood(t *testing.T) {
	h := newHarness(t, memory.Options{})
	h.fdb.Observe(macA, 0)
	h.fdb.Observe(macC, 2)

	require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, core.BroadcastMAC, ipA, ipBcd, []byte("$IIHDT,33,T*44"))))
	h.iterate(t)

	for port := 0; port < 3; port++ {
		assert.Empty(t, h.backend.Sent(port))
	}
	assert.Equal(t, 1.0, h.counter(metrics.MulticastSkipped, "B"))
	h.assertBuffersConserved(t)
}

func TestScenarioNonSentenceFloods(t *testing.T) {
	h := newHarness(t, memory.Options{})
	h.learnAll()

	raw := frames.UDPFrame(macA, macX, ipA, ipB, []byte("plain datagram"))
	require.NoError(t, h.backend.Inject(0, raw))
	h.iterate(t)

	assert.Empty(t, h.backend.Sent(0))
	assert.Equal(t, [][]byte{raw}, h.backend.Sent(1))
	assert.Equal(t, [][]byte{raw}, h.backend.Sent(2))
	h.assertBuffersConserved(t)
}

func TestScenarioRuntDropped(t *testing.T) {
	h := newHarness(t, memory.Options{})

	require.NoError(t, h.backend.Inject(0, make([]byte, 10)))
	h.iterate(t)

	assert.Zero(t, h.fdb.Len())
	for port := 0; port < 3; port++ {
		assert.Empty(t, h.backend.Sent(port))
	}
	assert.Equal(t, 1.0, h.counter(metrics.RuntDropped, "A"))
	h.assertBuffersConserved(t)
}

func TestDrainsEveryPendingFrame(t *testing.T) {
	h := newHarness(t, memory.Options{NumFrames: 16})
	h.learnAll()

	// More frames than a single receive; all are handled in one iteration.
	for i := 0; i < 5; i++ {
		payload := []byte{'p', byte('0' + i)}
		require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, macC, ipA, ipC, payload)))
	}
	require.NoError(t, h.backend.Inject(2, frames.UDPFrame(macC, macA, ipC, ipA, []byte("back"))))
	h.iterate(t)

	sentToC := h.backend.Sent(2)
	require.Len(t, sentToC, 5)
	for i, frame := range sentToC {
		hdr, err := decoder.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, []byte{'p', byte('0' + i)}, hdr.Payload, "receive order kept")
	}
	assert.Len(t, h.backend.Sent(0), 1)
	h.assertBuffersConserved(t)
}

func TestTransmitFailureCountedAndSkipped(t *testing.T) {
	h := newHarness(t, memory.Options{})
	h.learnAll()
	h.backend.SetLinkDown(1, true)

	require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, macX, ipA, ipB, []byte("flood me"))))
	h.iterate(t)

	assert.Empty(t, h.backend.Sent(1))
	assert.Len(t, h.backend.Sent(2), 1)
	assert.Equal(t, 1.0, h.counter(metrics.TxFailed, "B"))
	assert.Equal(t, 1.0, h.counter(metrics.TxSent, "C"))
	h.assertBuffersConserved(t)
}

func TestTransmitNoBufferCounted(t *testing.T) {
	// One chunk per port, parked in the fill ring; none left for tx.
	h := newHarness(t, memory.Options{NumFrames: 1})
	h.learnAll()

	require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, macC, ipA, ipC, []byte("x"))))
	h.iterate(t)

	assert.Empty(t, h.backend.Sent(2))
	assert.Equal(t, 1.0, h.counter(metrics.TxNoBuffer, "C"))
}

func TestBuffersRecycledAcrossIterations(t *testing.T) {
	h := newHarness(t, memory.Options{NumFrames: 4})
	h.learnAll()

	// Far more frames than chunks, spread over iterations.
	for i := 0; i < 20; i++ {
		require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, macB, ipA, ipB, []byte("x"))))
		h.iterate(t)
	}
	assert.Len(t, h.backend.Sent(1), 20)
	h.assertBuffersConserved(t)
}

func TestIterateTimeout(t *testing.T) {
	h := newHarness(t, memory.Options{})
	h.iterate(t)
	h.assertBuffersConserved(t)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, memory.Options{})
	h.learnAll()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.dispatcher.Run(ctx) }()

	require.NoError(t, h.backend.Inject(0, frames.UDPFrame(macA, core.BroadcastMAC, ipA, ipBcd, []byte("$IIHDT,33,T*44"))))
	require.Eventually(t, func() bool { return len(h.backend.Sent(1)) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsPortMismatch(t *testing.T) {
	tbl, err := policy.NewTable([]policy.Node{{Port: 0, Name: "A", MAC: macA, IP: ipA}})
	require.NoError(t, err)
	m := metrics.NewSwitchMetrics(prometheus.NewRegistry())

	_, err = New(memory.New(2, memory.Options{}), engine.New(tbl, fdb.New(), m), tbl, m, 0)
	assert.Error(t, err)
}

// pollErrBackend fails every Poll.
type pollErrBackend struct {
	*memory.Backend
	polls int
}

func (b *pollErrBackend) Poll(ctx context.Context, timeout time.Duration) ([]int, error) {
	b.polls++
	return nil, errors.New("poll broke")
}

var _ backend.Backend = (*pollErrBackend)(nil)

func TestIteratePollErrorStillRecycles(t *testing.T) {
	tbl, err := policy.NewTable([]policy.Node{{Port: 0, Name: "A", MAC: macA, IP: ipA}})
	require.NoError(t, err)
	m := metrics.NewSwitchMetrics(prometheus.NewRegistry())
	b := &pollErrBackend{Backend: memory.New(1, memory.Options{NumFrames: 4})}

	// A pending transmit completion is reclaimed even though Poll failed.
	require.NoError(t, b.Transmit(0, []byte("x")))
	require.Equal(t, 1, b.Stats(0).Comp)

	d, err := New(b, engine.New(tbl, fdb.New(), m), tbl, m, 0)
	require.NoError(t, err)
	assert.Error(t, d.Iterate(context.Background()))
	assert.Equal(t, 1, b.polls)
	assert.Zero(t, b.Stats(0).Comp)
}
