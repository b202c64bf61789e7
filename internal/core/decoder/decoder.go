// Package decoder implements L2-L4 decoding and rewriting of the
// Ethernet/IPv4/UDP frames carried by the switch.
package decoder

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/shipswitch/internal/core"
)

// Decode parses the Ethernet, IPv4 and UDP headers of raw.
//
// Frames shorter than 12 bytes fail with core.ErrRuntFrame and carry nothing
// usable. Every other result has valid Ethernet MACs, even when err is
// non-nil, so the caller can still switch the frame on L2. A non-IPv4 ethertype
// or a non-UDP protocol is not an error; Class reports how far decoding got.
func Decode(raw []byte) (core.ParsedHeaders, error) {
	var h core.ParsedHeaders

	eth, rest, err := decodeEthernet(raw)
	h.Ethernet = eth
	if err != nil {
		return h, err
	}
	if eth.EtherType != etherTypeIPv4 {
		return h, nil
	}

	ip, body, err := decodeIPv4(rest)
	if err != nil {
		return h, fmt.Errorf("ipv4: %w", err)
	}
	h.Class = core.ClassIPv4
	h.IPv4 = ip
	h.IPOffset = ethernetHeaderLen

	if ip.Protocol != protocolUDP || isIPFragment(rest) {
		return h, nil
	}

	udp, payload, err := decodeUDP(body)
	if err != nil {
		return h, fmt.Errorf("udp: %w", err)
	}
	h.Class = core.ClassUDP
	h.UDP = udp
	h.UDPOffset = h.IPOffset + ip.HeaderLen
	h.Payload = payload

	return h, nil
}

// Rewrite returns a copy of raw addressed to dstMAC/dstIP with fresh IPv4 and
// UDP checksums. It reports false, and never touches raw, unless raw decodes
// cleanly as Ethernet/IPv4/UDP and dstIP is an IPv4 address.
func Rewrite(raw []byte, dstMAC core.MAC, dstIP netip.Addr) ([]byte, bool) {
	h, err := Decode(raw)
	if err != nil || !h.IsUDP() || !dstIP.Is4() {
		return nil, false
	}

	out := make([]byte, len(raw))
	copy(out, raw)

	// L2 destination
	copy(out[0:6], dstMAC[:])

	// L3 destination and header checksum. The header length is unchanged.
	ip := out[h.IPOffset : h.IPOffset+h.IPv4.HeaderLen]
	dst := dstIP.As4()
	copy(ip[ipv4OffsetDst:ipv4OffsetDst+4], dst[:])
	binary.BigEndian.PutUint16(ip[ipv4OffsetChecksum:], 0)
	binary.BigEndian.PutUint16(ip[ipv4OffsetChecksum:], Checksum(ip, 0))

	// L4 checksum over pseudo-header + header + payload
	segment := out[h.UDPOffset : h.UDPOffset+int(h.UDP.Length)]
	binary.BigEndian.PutUint16(segment[udpOffsetChecksum:], 0)
	sum := udpChecksum(ip[ipv4OffsetSrc:ipv4OffsetSrc+4], ip[ipv4OffsetDst:ipv4OffsetDst+4], segment)
	binary.BigEndian.PutUint16(segment[udpOffsetChecksum:], sum)

	return out, true
}
