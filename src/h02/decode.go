package h02

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Field positions within a comma-split frame body.
const (
	fieldDeviceID  = 1
	fieldTime      = 3
	fieldLatitude  = 5
	fieldLongitude = 7
	fieldSpeed     = 9
	fieldDate      = 11

	minFieldCount = 12
)

// knotsToKmh converts the device's speed unit to km/h.
const knotsToKmh = 1.852

// timestampLayout matches the device's DDMMYY + HHMMSS encoding.
const timestampLayout = "020106150405"

// ErrorKind tags the reason a frame could not be decoded.
type ErrorKind string

const (
	KindMalformedFrame     ErrorKind = "malformed_frame"
	KindFieldCountMismatch ErrorKind = "field_count_mismatch"
	KindFieldFormatError   ErrorKind = "field_format_error"
	KindEncodingError      ErrorKind = "encoding_error"
)

// DecodeError describes why input could not be decoded. Raw holds a
// bounded prefix of the offending bytes for diagnostics. Field is the
// zero-based field index for KindFieldFormatError, -1 otherwise.
type DecodeError struct {
	Kind  ErrorKind
	Field int
	Raw   []byte
}

func (e *DecodeError) Error() string {
	if e.Kind == KindFieldFormatError {
		return fmt.Sprintf("h02: %s: field %d: %q", e.Kind, e.Field, e.Raw)
	}
	return fmt.Sprintf("h02: %s: %q", e.Kind, e.Raw)
}

// Report is one decoded H02 position report. ReceivedAt is set by the
// connection session at processing time, not by the decoder.
type Report struct {
	DeviceID    string
	Latitude    float64
	Longitude   float64
	VelocityKmh float64
	DeviceTime  time.Time
	ReceivedAt  time.Time
}

// Decode parses one frame body (the bytes between the delimiters) into
// a Report. It is pure and safe to call from any number of goroutines.
// All failures are reported as *DecodeError values.
func Decode(frame []byte) (*Report, error) {
	if !utf8.Valid(frame) {
		return nil, &DecodeError{Kind: KindEncodingError, Field: -1, Raw: boundedPrefix(frame)}
	}

	parts := strings.Split(string(frame), ",")
	if len(parts) < minFieldCount {
		return nil, &DecodeError{Kind: KindFieldCountMismatch, Field: -1, Raw: boundedPrefix(frame)}
	}

	lat, err := parseCoordinate(parts[fieldLatitude])
	if err != nil {
		return nil, fieldError(fieldLatitude, parts[fieldLatitude])
	}

	lon, err := parseCoordinate(parts[fieldLongitude])
	if err != nil {
		return nil, fieldError(fieldLongitude, parts[fieldLongitude])
	}

	knots, err := strconv.ParseFloat(parts[fieldSpeed], 64)
	if err != nil {
		return nil, fieldError(fieldSpeed, parts[fieldSpeed])
	}

	// The device reports DDMMYY and HHMMSS in separate fields, both
	// already in UTC.
	ts, err := time.Parse(timestampLayout, parts[fieldDate]+parts[fieldTime])
	if err != nil {
		return nil, fieldError(fieldDate, parts[fieldDate]+parts[fieldTime])
	}

	return &Report{
		DeviceID:    parts[fieldDeviceID],
		Latitude:    lat,
		Longitude:   lon,
		VelocityKmh: math.Round(knots * knotsToKmh),
		DeviceTime:  ts,
	}, nil
}

// parseCoordinate converts a sexagesimal-minutes coordinate
// (DDMM.mmmm) to decimal degrees: the first two characters are the
// degree part, the remainder is decimal minutes.
func parseCoordinate(v string) (float64, error) {
	if len(v) < 3 {
		return 0, fmt.Errorf("coordinate too short: %q", v)
	}
	deg, err := strconv.Atoi(v[:2])
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(v[2:], 64)
	if err != nil {
		return 0, err
	}
	return round6(float64(deg) + min/60), nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func fieldError(index int, raw string) *DecodeError {
	return &DecodeError{Kind: KindFieldFormatError, Field: index, Raw: boundedPrefix([]byte(raw))}
}
