// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/shipswitch/internal/core"
)

const (
	udpHeaderLen = 8

	udpOffsetChecksum = 6

	// Protocol numbers
	protocolUDP = 17
)

// decodeUDP decodes UDP header.
// The payload is bounded by the UDP length field, not by the remaining buffer.
func decodeUDP(data []byte) (core.UDPHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.UDPHeader{}, nil, core.ErrTruncated
	}

	udp := core.UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint16(data[4:6]), // header + data
		Checksum: binary.BigEndian.Uint16(data[6:8]),
	}

	length := int(udp.Length)
	if length < udpHeaderLen {
		return udp, nil, fmt.Errorf("%w: udp length %d", core.ErrMalformed, length)
	}
	if length > len(data) {
		return udp, nil, core.ErrTruncated
	}

	return udp, data[udpHeaderLen:length], nil
}
