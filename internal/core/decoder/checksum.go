// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/shipswitch/internal/core"
)

// Checksum returns the Internet checksum of data: the one's-complement of the
// one's-complement sum of all 16-bit big-endian words, seeded with initial.
// An odd trailing byte is padded with zero.
func Checksum(data []byte, initial uint32) uint16 {
	sum := initial
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// pseudoHeaderSum is the unfolded sum of the IPv4 pseudo-header used by UDP.
func pseudoHeaderSum(src, dst []byte, protocol uint8, length uint16) uint32 {
	var sum uint32
	sum += uint32(binary.BigEndian.Uint16(src[0:2]))
	sum += uint32(binary.BigEndian.Uint16(src[2:4]))
	sum += uint32(binary.BigEndian.Uint16(dst[0:2]))
	sum += uint32(binary.BigEndian.Uint16(dst[2:4]))
	sum += uint32(protocol)
	sum += uint32(length)
	return sum
}

// udpChecksum computes the UDP checksum of segment (header with checksum
// field zeroed, plus payload). Zero is sent as 0xFFFF per RFC 768.
func udpChecksum(src, dst, segment []byte) uint16 {
	c := Checksum(segment, pseudoHeaderSum(src, dst, protocolUDP, uint16(len(segment))))
	if c == 0 {
		c = 0xFFFF
	}
	return c
}

// VerifyIPv4Checksum checks the IPv4 header checksum of an Ethernet/IPv4 frame.
func VerifyIPv4Checksum(frame []byte) error {
	h, err := Decode(frame)
	if err != nil {
		return err
	}
	if h.Class < core.ClassIPv4 {
		return fmt.Errorf("%w: not an ipv4 frame", core.ErrMalformed)
	}
	if Checksum(frame[h.IPOffset:h.IPOffset+h.IPv4.HeaderLen], 0) != 0 {
		return fmt.Errorf("%w: ipv4 checksum mismatch", core.ErrMalformed)
	}
	return nil
}

// VerifyUDPChecksum checks the UDP checksum of an Ethernet/IPv4/UDP frame.
// A zero checksum means the sender did not compute one and always passes.
func VerifyUDPChecksum(frame []byte) error {
	h, err := Decode(frame)
	if err != nil {
		return err
	}
	if !h.IsUDP() {
		return fmt.Errorf("%w: not a udp frame", core.ErrMalformed)
	}
	if h.UDP.Checksum == 0 {
		return nil
	}

	ip := frame[h.IPOffset : h.IPOffset+h.IPv4.HeaderLen]
	segment := frame[h.UDPOffset : h.UDPOffset+int(h.UDP.Length)]
	pseudo := pseudoHeaderSum(ip[ipv4OffsetSrc:ipv4OffsetSrc+4], ip[ipv4OffsetDst:ipv4OffsetDst+4], protocolUDP, h.UDP.Length)
	if Checksum(segment, pseudo) != 0 {
		return fmt.Errorf("%w: udp checksum mismatch", core.ErrMalformed)
	}
	return nil
}

// VerifyChecksums runs VerifyIPv4Checksum and VerifyUDPChecksum.
func VerifyChecksums(frame []byte) error {
	if err := VerifyIPv4Checksum(frame); err != nil {
		return err
	}
	return VerifyUDPChecksum(frame)
}
