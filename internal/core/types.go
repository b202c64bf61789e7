// Package core defines core types with zero external dependencies.
package core

import (
	"fmt"
	"net"
	"net/netip"
)

// MAC is a 6-byte Ethernet hardware address usable as a map key.
type MAC [6]byte

// BroadcastMAC is the L2 broadcast address.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a colon or dash separated EUI-48 string.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("%w: mac %q: %v", ErrConfigInvalid, s, err)
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("%w: mac %q is not 6 bytes", ErrConfigInvalid, s)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// MACFromSlice copies the first 6 bytes of b.
func MACFromSlice(b []byte) MAC {
	var m MAC
	copy(m[:], b)
	return m
}

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// ParseIPv4 parses a dotted-quad IPv4 address. IPv6 is rejected.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: ip %q: %v", ErrConfigInvalid, s, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: ip %q is not IPv4", ErrConfigInvalid, s)
	}
	return addr, nil
}

// Class tells how far up the stack a frame could be decoded.
type Class uint8

const (
	// ClassL2 frames carry a non-IPv4 ethertype; only the MACs are meaningful.
	ClassL2 Class = iota
	// ClassIPv4 frames carry IPv4 with a transport other than UDP.
	ClassIPv4
	// ClassUDP frames are well-formed Ethernet/IPv4/UDP.
	ClassUDP
)

func (c Class) String() string {
	switch c {
	case ClassL2:
		return "l2"
	case ClassIPv4:
		return "ipv4"
	case ClassUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC    MAC
	DstMAC    MAC
	EtherType uint16 // 0x0800=IPv4
}

// IPv4Header represents the IPv4 fields the switch reads or rewrites.
type IPv4Header struct {
	HeaderLen int // IHL * 4
	TotalLen  uint16
	Protocol  uint8 // UDP=17
	TTL       uint8
	Checksum  uint16
	SrcIP     netip.Addr
	DstIP     netip.Addr
}

// UDPHeader represents L4 UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16 // header + payload
	Checksum uint16
}
