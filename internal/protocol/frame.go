// Package protocol defines the auxiliary data-channel frame format exchanged
// between the station and the viewer.
package protocol

import "encoding/json"

// Frame type discriminators.
const (
	TypeTelemetry  = "telemetry"
	TypeDetections = "detections"
)

// Frame is the JSON envelope of every auxiliary-channel message:
//
//	{"type":"telemetry","payload":{...}}
//	{"type":"detections","payload":[...]}
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Telemetry is the vehicle state published by the station.
type Telemetry struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed,omitempty"`
	Battery   float64 `json:"battery,omitempty"`

	// Extra holds payload fields not modelled above, and modelled fields
	// whose value is not numeric.
	Extra map[string]json.RawMessage `json:"-"`

	// Raw is the payload object as received. Nil for locally built values.
	Raw json.RawMessage `json:"-"`
}

// Detection is one object detected in the video frame. The bounding box is
// normalized: X, Y, W and H are fractions of the frame in [0, 1].
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// Message is a decoded frame. Exactly one of Telemetry or Detections is set
// for the known types; for unknown types both are nil.
type Message struct {
	Type       string
	Telemetry  *Telemetry
	Detections []Detection
}
