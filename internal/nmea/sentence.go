package nmea

// SentenceType is the three-letter sentence formatter.
type SentenceType uint8

const (
	SentenceHDT SentenceType = iota // heading, true
	SentenceGGA                     // GNSS fix data
	SentenceGLL                     // geographic position
	SentenceRMC                     // recommended minimum data
	SentenceZDA                     // time and date
	SentenceDPT                     // depth
	SentenceVHW                     // water speed and heading
	SentenceTTM                     // tracked target message
	SentenceTLL                     // target latitude and longitude
	SentenceVDM                     // AIS, other vessels
	SentenceVDO                     // AIS, own vessel
	numSentences
)

var sentenceCodes = [numSentences]string{
	SentenceHDT: "HDT",
	SentenceGGA: "GGA",
	SentenceGLL: "GLL",
	SentenceRMC: "RMC",
	SentenceZDA: "ZDA",
	SentenceDPT: "DPT",
	SentenceVHW: "VHW",
	SentenceTTM: "TTM",
	SentenceTLL: "TLL",
	SentenceVDM: "VDM",
	SentenceVDO: "VDO",
}

// schemas holds the positional field names of every extractable type. The
// last name always carries the trailing "*hh" checksum when one is present.
// VDM and VDO are encapsulated AIS payloads and have no schema.
var schemas = map[SentenceType][]string{
	SentenceHDT: {"heading_degrees", "true_checksum"},
	SentenceGGA: {
		"utc_time", "latitude", "lat_direction", "longitude", "lon_direction",
		"fix_quality", "satellites", "hdop", "altitude", "altitude_units",
		"geoid_separation", "separation_units", "dgps_age", "dgps_station", "checksum",
	},
	SentenceGLL: {
		"latitude", "lat_direction", "longitude", "lon_direction",
		"utc_time", "status", "mode_checksum",
	},
	SentenceRMC: {
		"utc_time", "status", "latitude", "lat_direction", "longitude", "lon_direction",
		"speed_knots", "track_degrees", "date", "magnetic_variation", "variation_direction",
		"mode_checksum",
	},
	SentenceZDA: {"utc_time", "day", "month", "year", "zone_hours", "zone_minutes_checksum"},
	SentenceDPT: {"depth_meters", "offset_meters", "max_range_checksum"},
	SentenceVHW: {
		"heading_true", "true_indicator", "heading_magnetic", "magnetic_indicator",
		"speed_knots", "knots_indicator", "speed_kmh", "kmh_checksum",
	},
	SentenceTTM: {
		"target_number", "target_distance", "bearing", "bearing_reference",
		"target_speed", "target_course", "course_reference", "cpa_distance",
		"cpa_time", "distance_units", "target_name", "target_status",
		"reference_target", "utc_time", "acquisition_type", "checksum",
	},
	SentenceTLL: {
		"target_number", "latitude", "lat_direction", "longitude", "lon_direction",
		"target_name", "utc_time", "target_status", "reference_target_checksum",
	},
}

var sentenceByCode = func() map[string]SentenceType {
	m := make(map[string]SentenceType, numSentences)
	for st, code := range sentenceCodes {
		m[code] = SentenceType(st)
	}
	return m
}()

// Code returns the three-letter formatter, e.g. "GGA".
func (s SentenceType) Code() string {
	if s >= numSentences {
		return ""
	}
	return sentenceCodes[s]
}

func (s SentenceType) String() string {
	if s >= numSentences {
		return "unknown"
	}
	return sentenceCodes[s]
}

// Extractable reports whether s has a field schema.
func (s SentenceType) Extractable() bool {
	_, ok := schemas[s]
	return ok
}

// Schema returns a copy of the ordered field names for s, or nil.
func (s SentenceType) Schema() []string {
	names, ok := schemas[s]
	if !ok {
		return nil
	}
	return append([]string(nil), names...)
}

// LookupSentence resolves a three-letter formatter, including types without a schema.
func LookupSentence(code string) (SentenceType, bool) {
	st, ok := sentenceByCode[code]
	return st, ok
}
