// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/shipswitch/internal/core"
)

const (
	ipv4HeaderMinLen = 20

	// Field offsets inside the IPv4 header
	ipv4OffsetChecksum = 10
	ipv4OffsetSrc      = 12
	ipv4OffsetDst      = 16
)

// decodeIPv4 decodes IPv4 header.
// Returns the header and the datagram body, bounded by Total Length so that
// Ethernet padding is excluded.
func decodeIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, core.ErrTruncated
	}

	// Check IP version (first 4 bits)
	if version := data[0] >> 4; version != 4 {
		return core.IPv4Header{}, nil, fmt.Errorf("%w: ip version %d", core.ErrMalformed, version)
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte, in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, fmt.Errorf("%w: ihl %d", core.ErrMalformed, headerLen/4)
	}
	if len(data) < headerLen {
		return core.IPv4Header{}, nil, core.ErrTruncated
	}

	ip := core.IPv4Header{
		HeaderLen: headerLen,
		TotalLen:  binary.BigEndian.Uint16(data[2:4]),
		TTL:       data[8],
		Protocol:  data[9],
		Checksum:  binary.BigEndian.Uint16(data[ipv4OffsetChecksum : ipv4OffsetChecksum+2]),
		SrcIP:     netip.AddrFrom4([4]byte(data[ipv4OffsetSrc : ipv4OffsetSrc+4])),
		DstIP:     netip.AddrFrom4([4]byte(data[ipv4OffsetDst : ipv4OffsetDst+4])),
	}

	totalLen := int(ip.TotalLen)
	if totalLen < headerLen {
		return ip, nil, fmt.Errorf("%w: total length %d below header length %d", core.ErrMalformed, totalLen, headerLen)
	}
	if totalLen > len(data) {
		return ip, nil, core.ErrTruncated
	}

	return ip, data[headerLen:totalLen], nil
}

// isIPFragment checks if an IPv4 packet is a fragment.
// Only the first fragment carries the UDP header, and it is never complete on its own.
func isIPFragment(ipData []byte) bool {
	if len(ipData) < ipv4HeaderMinLen {
		return false
	}
	// Flags and Fragment Offset (2 bytes at offset 6)
	flagsOffset := binary.BigEndian.Uint16(ipData[6:8])
	moreFragments := (flagsOffset & 0x2000) != 0 // MF flag
	fragmentOffset := flagsOffset & 0x1FFF       // Fragment offset
	return moreFragments || fragmentOffset != 0
}
