// Package nmea parses NMEA 0183 sentences into named fields.
package nmea

// TalkerID identifies the subsystem that emitted a sentence.
type TalkerID uint8

// Recognized talker identifiers.
const (
	TalkerAI TalkerID = iota // alarm indicator
	TalkerAP                 // autopilot
	TalkerBD                 // BeiDou
	TalkerCD                 // digital selective calling
	TalkerEC                 // ECDIS
	TalkerGA                 // Galileo
	TalkerGB                 // BeiDou
	TalkerGI                 // NavIC (IRNSS)
	TalkerGL                 // GLONASS
	TalkerGN                 // combined GNSS
	TalkerGP                 // GPS
	TalkerGQ                 // QZSS
	TalkerHC                 // magnetic compass
	TalkerHE                 // north-seeking gyro
	TalkerII                 // integrated instrumentation
	TalkerIN                 // integrated navigation
	TalkerLC                 // Loran-C
	TalkerPQ                 // Quectel QZSS quirk
	TalkerQZ                 // QZSS
	TalkerRA                 // radar / ARPA
	TalkerSD                 // depth sounder
	TalkerST                 // SkyTraq
	TalkerTI                 // turn rate indicator
	TalkerWI                 // weather instrument
	TalkerYX                 // transducer
	numTalkers
)

type talkerInfo struct {
	code string
	name string
}

var talkers = [numTalkers]talkerInfo{
	TalkerAI: {"AI", "Alarm Indicator"},
	TalkerAP: {"AP", "Auto Pilot"},
	TalkerBD: {"BD", "BeiDou"},
	TalkerCD: {"CD", "Digital Selective Calling"},
	TalkerEC: {"EC", "ECDIS"},
	TalkerGA: {"GA", "Galileo"},
	TalkerGB: {"GB", "BeiDou"},
	TalkerGI: {"GI", "NavIC"},
	TalkerGL: {"GL", "GLONASS"},
	TalkerGN: {"GN", "Multiple Satellite Systems"},
	TalkerGP: {"GP", "GPS Receiver"},
	TalkerGQ: {"GQ", "QZSS"},
	TalkerHC: {"HC", "Heading Compass"},
	TalkerHE: {"HE", "Gyro North Seeking"},
	TalkerII: {"II", "Integrated Instrumentation"},
	TalkerIN: {"IN", "Integrated Navigation"},
	TalkerLC: {"LC", "Loran-C Receiver"},
	TalkerPQ: {"PQ", "Quectel QZSS"},
	TalkerQZ: {"QZ", "QZSS"},
	TalkerRA: {"RA", "Radar"},
	TalkerSD: {"SD", "Depth Sounder"},
	TalkerST: {"ST", "SkyTraq"},
	TalkerTI: {"TI", "Turn Indicator"},
	TalkerWI: {"WI", "Weather Instrument"},
	TalkerYX: {"YX", "Transducer"},
}

var talkerByCode = func() map[string]TalkerID {
	m := make(map[string]TalkerID, numTalkers)
	for id, info := range talkers {
		m[info.code] = TalkerID(id)
	}
	return m
}()

// Code returns the two-letter code, e.g. "GP".
func (t TalkerID) Code() string {
	if t >= numTalkers {
		return ""
	}
	return talkers[t].code
}

func (t TalkerID) String() string {
	if t >= numTalkers {
		return "unknown"
	}
	return talkers[t].name
}

// LookupTalker resolves a two-letter talker code.
func LookupTalker(code string) (TalkerID, bool) {
	id, ok := talkerByCode[code]
	return id, ok
}

// Talkers returns every recognized talker in table order.
func Talkers() []TalkerID {
	out := make([]TalkerID, 0, numTalkers)
	for id := TalkerID(0); id < numTalkers; id++ {
		out = append(out, id)
	}
	return out
}
