// Package capture records switched traffic to pcap and reads it back.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/log"
)

const DefaultSnapLen = 65535

// Tap is a Backend that writes every frame it transmits successfully to a
// pcap stream. Like the backend it wraps, it is driven from one goroutine.
type Tap struct {
	backend.Backend

	out     *bufio.Writer
	closer  io.Closer
	w       *pcapgo.Writer
	snapLen int
	written int
	now     func() time.Time
	logger  log.Logger
}

// NewTap creates path and records into it.
func NewTap(b backend.Backend, path string, snapLen int) (*Tap, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	t, err := NewTapWriter(b, f, snapLen)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.closer = f
	return t, nil
}

// NewTapWriter records into w. w is not closed by Close.
func NewTapWriter(b backend.Backend, w io.Writer, snapLen int) (*Tap, error) {
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	out := bufio.NewWriter(w)
	pw := pcapgo.NewWriter(out)
	if err := pw.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Tap{
		Backend: b,
		out:     out,
		w:       pw,
		snapLen: snapLen,
		now:     time.Now,
		logger:  log.GetLogger().WithField("component", "capture"),
	}, nil
}

// Transmit forwards to the wrapped backend. A frame that fails to transmit is
// not recorded; a recording failure does not fail the transmit.
func (t *Tap) Transmit(port int, data []byte) error {
	if err := t.Backend.Transmit(port, data); err != nil {
		return err
	}

	ci := gopacket.CaptureInfo{
		Timestamp:      t.now(),
		Length:         len(data),
		CaptureLength:  min(len(data), t.snapLen),
		InterfaceIndex: port,
	}
	if err := t.w.WritePacket(ci, data[:ci.CaptureLength]); err != nil {
		t.logger.WithError(err).Warnf("port %d: capture write failed", port)
		return nil
	}
	t.written++
	return nil
}

// Written returns the number of recorded frames.
func (t *Tap) Written() int { return t.written }

// Flush pushes buffered records to the underlying writer.
func (t *Tap) Flush() error { return t.out.Flush() }

// Close flushes the capture, closes its file and then the wrapped backend.
func (t *Tap) Close() error {
	errs := []error{t.out.Flush()}
	if t.closer != nil {
		errs = append(errs, t.closer.Close())
	}
	errs = append(errs, t.Backend.Close())
	return errors.Join(errs...)
}

// Packet is one recorded frame.
type Packet struct {
	Timestamp time.Time
	Data      []byte
}

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Read reads every frame of a pcap or pcapng stream. Only Ethernet captures
// are accepted.
func Read(r io.Reader) ([]Packet, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var pr packetReader
	if bytes.Equal(magic, ngMagic) {
		pr, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		pr, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet {
		return nil, fmt.Errorf("capture link type %s is not Ethernet", lt)
	}

	var pkts []Packet
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return pkts, nil
		}
		if err != nil {
			return pkts, fmt.Errorf("read packet %d: %w", len(pkts)+1, err)
		}
		pkts = append(pkts, Packet{Timestamp: ci.Timestamp, Data: data})
	}
}

// ReadFile reads the capture at path.
func ReadFile(path string) ([]Packet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()
	return Read(f)
}
