package decoder

import (
	"errors"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/shipswitch/internal/core"
)

var (
	testSrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	testDstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	testSrcIP  = net.IPv4(10, 0, 0, 1)
	testDstIP  = net.IPv4(10, 0, 0, 2)
)

// buildUDPFrame serializes an Ethernet/IPv4/UDP frame with correct lengths and
// checksums. Short frames are padded to the 60-byte Ethernet minimum.
func buildUDPFrame(t testing.TB, dstMAC net.HardwareAddr, dstIP net.IP, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       testSrcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1234,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    testSrcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{
		SrcPort: 10110,
		DstPort: 10110,
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum failed: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("SerializeLayers failed: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeUDPFrame(t *testing.T) {
	payload := []byte("$GPHDT,274.07,T*03")
	frame := buildUDPFrame(t, testDstMAC, testDstIP, payload)

	h, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if h.Class != core.ClassUDP {
		t.Fatalf("Expected class udp, got %v", h.Class)
	}
	if h.Ethernet.SrcMAC != core.MACFromSlice(testSrcMAC) {
		t.Errorf("Expected SrcMAC %v, got %v", testSrcMAC, h.Ethernet.SrcMAC)
	}
	if h.Ethernet.DstMAC != core.MACFromSlice(testDstMAC) {
		t.Errorf("Expected DstMAC %v, got %v", testDstMAC, h.Ethernet.DstMAC)
	}
	if h.IPv4.Protocol != 17 {
		t.Errorf("Expected protocol 17, got %d", h.IPv4.Protocol)
	}
	if h.IPv4.DstIP.String() != "10.0.0.2" {
		t.Errorf("Expected DstIP 10.0.0.2, got %v", h.IPv4.DstIP)
	}
	if h.UDP.SrcPort != 10110 || h.UDP.DstPort != 10110 {
		t.Errorf("Expected ports 10110, got %d -> %d", h.UDP.SrcPort, h.UDP.DstPort)
	}
	if h.IPOffset != 14 || h.UDPOffset != 34 {
		t.Errorf("Expected offsets 14/34, got %d/%d", h.IPOffset, h.UDPOffset)
	}
	// Ethernet padding must not leak into the payload
	if string(h.Payload) != string(payload) {
		t.Errorf("Expected payload %q, got %q", payload, h.Payload)
	}
}

func TestDecodeRuntFrame(t *testing.T) {
	for _, n := range []int{0, 1, 11} {
		_, err := Decode(make([]byte, n))
		if !errors.Is(err, core.ErrRuntFrame) {
			t.Errorf("len %d: expected ErrRuntFrame, got %v", n, err)
		}
	}
}

func TestDecodeMACsOnly(t *testing.T) {
	// 12 and 13 bytes: MACs usable, ethertype cut off
	frame := append(append([]byte{}, testDstMAC...), testSrcMAC...)
	for _, data := range [][]byte{frame, append(frame, 0x08)} {
		h, err := Decode(data)
		if !errors.Is(err, core.ErrTruncated) {
			t.Errorf("len %d: expected ErrTruncated, got %v", len(data), err)
		}
		if h.Class != core.ClassL2 {
			t.Errorf("len %d: expected class l2, got %v", len(data), h.Class)
		}
		if h.Ethernet.SrcMAC != core.MACFromSlice(testSrcMAC) {
			t.Errorf("len %d: SrcMAC not populated", len(data))
		}
	}
}

func TestDecodeNonIPv4(t *testing.T) {
	frame := buildUDPFrame(t, testDstMAC, testDstIP, []byte("x"))

	for _, etherType := range []uint16{0x0806, 0x86DD, 0x8100} {
		data := append([]byte{}, frame...)
		data[12], data[13] = byte(etherType>>8), byte(etherType)

		h, err := Decode(data)
		if err != nil {
			t.Errorf("ethertype %#04x: unexpected error %v", etherType, err)
		}
		if h.Class != core.ClassL2 {
			t.Errorf("ethertype %#04x: expected class l2, got %v", etherType, h.Class)
		}
		if h.Ethernet.EtherType != etherType {
			t.Errorf("Expected ethertype %#04x, got %#04x", etherType, h.Ethernet.EtherType)
		}
	}
}

func TestDecodeNonUDP(t *testing.T) {
	frame := buildUDPFrame(t, testDstMAC, testDstIP, []byte("x"))
	frame[14+9] = 6 // TCP

	h, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if h.Class != core.ClassIPv4 {
		t.Errorf("Expected class ipv4, got %v", h.Class)
	}
	if h.Payload != nil {
		t.Errorf("Expected no payload, got %q", h.Payload)
	}
}

func TestDecodeFragment(t *testing.T) {
	frame := buildUDPFrame(t, testDstMAC, testDstIP, []byte("x"))
	frame[14+6] = 0x20 // MF

	h, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if h.Class != core.ClassIPv4 {
		t.Errorf("Expected class ipv4 for a fragment, got %v", h.Class)
	}
}

func TestDecodeBadIPv4(t *testing.T) {
	frame := buildUDPFrame(t, testDstMAC, testDstIP, []byte("$GPHDT,1.0,T*00"))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"version 6", func(b []byte) []byte { b[14] = 0x65; return b }, core.ErrMalformed},
		{"ihl 4", func(b []byte) []byte { b[14] = 0x44; return b }, core.ErrMalformed},
		{"ihl beyond buffer", func(b []byte) []byte { b[14] = 0x4F; return b[:14+40] }, core.ErrTruncated},
		{"short header", func(b []byte) []byte { return b[:14+19] }, core.ErrTruncated},
		{"total length past buffer", func(b []byte) []byte { b[16], b[17] = 0x05, 0xDC; return b }, core.ErrTruncated},
		{"total length below header", func(b []byte) []byte { b[16], b[17] = 0x00, 0x10; return b }, core.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte{}, frame...))
			h, err := Decode(data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if h.Class != core.ClassL2 {
				t.Errorf("Expected class l2, got %v", h.Class)
			}
			if h.Ethernet.DstMAC != core.MACFromSlice(testDstMAC) {
				t.Errorf("DstMAC not populated on error")
			}
		})
	}
}

func TestDecodeBadUDP(t *testing.T) {
	frame := buildUDPFrame(t, testDstMAC, testDstIP, []byte("$GPHDT,1.0,T*00"))
	udpLen := 14 + 20 + 4

	tests := []struct {
		name   string
		length uint16
		want   error
	}{
		{"length below header", 7, core.ErrMalformed},
		{"length past datagram", 200, core.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte{}, frame...)
			data[udpLen], data[udpLen+1] = byte(tt.length>>8), byte(tt.length)
			h, err := Decode(data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if h.Class != core.ClassIPv4 {
				t.Errorf("Expected class ipv4, got %v", h.Class)
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	frame := buildUDPFrame(b, testDstMAC, testDstIP, []byte("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(frame)
	}
}
