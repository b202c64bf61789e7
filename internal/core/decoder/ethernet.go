// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/shipswitch/internal/core"
)

const (
	// Ethernet constants
	macHeaderLen      = 12 // dst + src MAC, enough for MAC switching
	ethernetHeaderLen = 14

	// EtherType values
	etherTypeIPv4 = 0x0800
)

// decodeEthernet decodes the Ethernet II header.
// The MAC addresses are populated whenever data holds at least 12 bytes, even
// if the ethertype is cut off, so the frame remains MAC-switchable.
func decodeEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	if len(data) < macHeaderLen {
		return core.EthernetHeader{}, nil, core.ErrRuntFrame
	}

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], data[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], data[6:12])

	if len(data) < ethernetHeaderLen {
		return eth, nil, core.ErrTruncated
	}

	// EtherType (2 bytes). 802.1Q tags are not unwrapped: a tagged frame is
	// switched on its MACs only.
	eth.EtherType = binary.BigEndian.Uint16(data[12:14])

	return eth, data[ethernetHeaderLen:], nil
}
