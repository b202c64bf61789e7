// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// Frame decoding errors
	ErrRuntFrame = errors.New("shipswitch: frame shorter than two MAC addresses")
	ErrTruncated = errors.New("shipswitch: truncated header")
	ErrMalformed = errors.New("shipswitch: malformed header")

	// Sentence parsing errors
	ErrNotSentence     = errors.New("shipswitch: not an nmea sentence")
	ErrUnknownTalker   = errors.New("shipswitch: unknown talker id")
	ErrUnsupportedType = errors.New("shipswitch: unsupported sentence type")
	ErrSchemaMismatch  = errors.New("shipswitch: sentence field count below schema")

	// Policy errors
	ErrNotAuthorized = errors.New("shipswitch: sender not authorized for prefix")

	// Forge errors
	ErrNotForgeable = errors.New("shipswitch: frame cannot be rewritten")

	// I/O errors
	ErrNoBuffer       = errors.New("shipswitch: no free transmit buffer")
	ErrTransmitFailed = errors.New("shipswitch: transmit failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("shipswitch: invalid configuration")
)
