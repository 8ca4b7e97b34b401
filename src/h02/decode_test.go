package h02

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFrame = "HQ,9170119247,V6,102523,A,5628.0960,N,8502.8648,E,0.00,284.00,291024,FFFFFBFF,250,2,7006,50421,897011102513827006FF,"

func TestDecodeSampleFrame(t *testing.T) {
	report, err := Decode([]byte(sampleFrame))
	require.NoError(t, err)

	assert.Equal(t, "9170119247", report.DeviceID)
	// 56 + 28.0960/60, rounded to 6 decimal places.
	assert.Equal(t, 56.468267, report.Latitude)
	// 85 + 02.8648/60, rounded to 6 decimal places.
	assert.Equal(t, 85.047747, report.Longitude)
	assert.Equal(t, 0.0, report.VelocityKmh)
	assert.Equal(t, time.Date(2024, 10, 29, 10, 25, 23, 0, time.UTC), report.DeviceTime)
	assert.True(t, report.ReceivedAt.IsZero(), "ReceivedAt is the session's concern")
}

func TestDecodeVelocityConversion(t *testing.T) {
	// 10 knots -> 18.52 km/h -> rounded to 19.
	frame := "HQ,123,V6,102523,A,5628.0960,N,8502.8648,E,10.00,284.00,291024"
	report, err := Decode([]byte(frame))
	require.NoError(t, err)
	assert.Equal(t, 19.0, report.VelocityKmh)
}

func TestDecodeFieldCountMismatch(t *testing.T) {
	_, err := Decode([]byte("HQ,9170119247,V6"))
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindFieldCountMismatch, derr.Kind)
}

func TestDecodeBadSpeedField(t *testing.T) {
	frame := "HQ,123,V6,102523,A,5628.0960,N,8502.8648,E,fast,284.00,291024"
	_, err := Decode([]byte(frame))
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindFieldFormatError, derr.Kind)
	assert.Equal(t, 9, derr.Field)
	assert.Equal(t, []byte("fast"), derr.Raw)
}

func TestDecodeBadCoordinateFields(t *testing.T) {
	for name, tc := range map[string]struct {
		lat, lon string
		field    int
	}{
		"latitude":        {"bad", "8502.8648", 5},
		"longitude":       {"5628.0960", "bad", 7},
		"latitude short":  {"5", "8502.8648", 5},
		"latitude letter": {"5x28.0960", "8502.8648", 5},
	} {
		t.Run(name, func(t *testing.T) {
			frame := "HQ,123,V6,102523,A," + tc.lat + ",N," + tc.lon + ",E,0.00,284.00,291024"
			_, err := Decode([]byte(frame))
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, KindFieldFormatError, derr.Kind)
			assert.Equal(t, tc.field, derr.Field)
		})
	}
}

func TestDecodeBadTimestamp(t *testing.T) {
	frame := "HQ,123,V6,999999,A,5628.0960,N,8502.8648,E,0.00,284.00,291024"
	_, err := Decode([]byte(frame))
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindFieldFormatError, derr.Kind)
	assert.Equal(t, 11, derr.Field)
}

func TestDecodeInvalidEncoding(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xfe, ','})
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindEncodingError, derr.Kind)
}

func TestDecodeDeterministic(t *testing.T) {
	a, err := Decode([]byte(sampleFrame))
	require.NoError(t, err)
	b, err := Decode([]byte(sampleFrame))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeErrorRawIsBounded(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xfe})
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.LessOrEqual(t, len(derr.Raw), errPrefixLen)

	long := make([]byte, 100)
	for i := range long {
		long[i] = 0xff
	}
	_, err = Decode(long)
	require.ErrorAs(t, err, &derr)
	assert.Len(t, derr.Raw, errPrefixLen)
}
