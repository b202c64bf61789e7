// Package testutil builds reference frames for tests.
package testutil

import (
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/shipswitch/internal/core"
)

// NMEAPort is the UDP port used by test senders.
const NMEAPort = 10110

// UDPFrame serializes an Ethernet/IPv4/UDP frame with correct lengths and
// checksums. It panics on serialization errors, which only bad arguments cause.
func UDPFrame(src, dst core.MAC, srcIP, dstIP netip.Addr, payload []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(src[:]),
		DstMAC:       net.HardwareAddr(dst[:]),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP.AsSlice(),
		DstIP:    dstIP.AsSlice(),
	}
	udp := &layers.UDP{
		SrcPort: NMEAPort,
		DstPort: NMEAPort,
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		panic(err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// L2Frame builds an Ethernet frame with the given ethertype and payload,
// padded to the 60-byte minimum.
func L2Frame(src, dst core.MAC, etherType layers.EthernetType, payload []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(src[:]),
		DstMAC:       net.HardwareAddr(dst[:]),
		EthernetType: etherType,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(payload)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
