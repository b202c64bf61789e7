// Package core defines core data structures with zero external dependencies.
package core

// NonNMEAPrefix marks traffic items that were switched without sentence inspection.
const NonNMEAPrefix = "NONMEA"

// ParsedHeaders is the result of L2-L4 decoding of one frame. It is rebuilt
// for every frame and slices into the frame it was decoded from.
type ParsedHeaders struct {
	Class    Class
	Ethernet EthernetHeader
	IPv4     IPv4Header // valid when Class >= ClassIPv4
	UDP      UDPHeader  // valid when Class == ClassUDP
	Payload  []byte     // UDP payload bounded by the UDP length field

	// Offsets into the frame, used by Rewrite.
	IPOffset  int
	UDPOffset int
}

// IsUDP reports whether the frame was fully decoded as Ethernet/IPv4/UDP.
func (h *ParsedHeaders) IsUDP() bool {
	return h.Class == ClassUDP
}

// TrafficItem is one frame queued for transmission during an iteration.
type TrafficItem struct {
	Port   int    // egress port
	Data   []byte // frame bytes, never mutated after enqueue
	NMEA   bool
	Prefix string // "$"+talker+type, or NonNMEAPrefix when NMEA is false
}
