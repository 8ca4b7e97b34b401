// Package owntracks builds the OwnTracks location payload published
// to the configured sink.
package owntracks

import (
	"github.com/bytedance/sonic"

	"github.com/sandrolain/h02-bridge/src/h02"
)

// Payload is the OwnTracks location message. The constant fields
// (_type, acc, conn, t) identify the report as a GPS fix delivered
// over a mobile connection.
type Payload struct {
	Type      string  `json:"_type"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Acc       int     `json:"acc"`
	Vel       float64 `json:"vel"`
	Tst       int64   `json:"tst"`
	CreatedAt int64   `json:"created_at"`
	Conn      string  `json:"conn"`
	TID       string  `json:"tid"`
	T         string  `json:"t"`
}

// FromReport maps a decoded report to the outbound payload. tid is
// the tracker tag for the deployment; when empty the device
// identifier is used.
func FromReport(r *h02.Report, tid string) Payload {
	if tid == "" {
		tid = r.DeviceID
	}
	return Payload{
		Type:      "location",
		Lat:       r.Latitude,
		Lon:       r.Longitude,
		Acc:       3,
		Vel:       r.VelocityKmh,
		Tst:       r.DeviceTime.Unix(),
		CreatedAt: r.ReceivedAt.Unix(),
		Conn:      "m",
		TID:       tid,
		T:         "I",
	}
}

// Encode marshals the payload for r as JSON.
func Encode(r *h02.Report, tid string) ([]byte, error) {
	return sonic.Marshal(FromReport(r, tid))
}
