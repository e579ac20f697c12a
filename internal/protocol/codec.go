package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedFrame is returned by Decode for frames that are not a JSON
// envelope or whose payload does not match the declared type.
var ErrMalformedFrame = errors.New("malformed frame")

// Decode parses one text frame. Frames with an unknown type decode
// successfully into a Message carrying only the Type.
func Decode(data []byte) (*Message, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	msg := &Message{Type: f.Type}
	switch f.Type {
	case TypeTelemetry:
		t, err := decodeTelemetry(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: telemetry payload: %v", ErrMalformedFrame, err)
		}
		msg.Telemetry = t

	case TypeDetections:
		var dets []Detection
		if err := json.Unmarshal(f.Payload, &dets); err != nil {
			return nil, fmt.Errorf("%w: detections payload: %v", ErrMalformedFrame, err)
		}
		msg.Detections = dets
	}
	return msg, nil
}

// decodeTelemetry accepts any JSON object. Known fields are read as numbers
// or numeric strings; a known field of any other shape is kept in Extra
// rather than failing the frame.
func decodeTelemetry(raw json.RawMessage) (*Telemetry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("empty payload")
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}

	t := &Telemetry{Raw: raw}
	known := map[string]*float64{
		"latitude":  &t.Latitude,
		"longitude": &t.Longitude,
		"heading":   &t.Heading,
		"speed":     &t.Speed,
		"battery":   &t.Battery,
	}
	for k, v := range all {
		if dst, ok := known[k]; ok {
			if f, ok := lenientFloat(v); ok {
				*dst = f
				continue
			}
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = v
	}
	return t, nil
}

// lenientFloat reads a JSON number, a numeric string, or null (as zero).
func lenientFloat(v json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Encode serializes a Message into a text frame for data-channel transmission.
func Encode(msg *Message) ([]byte, error) {
	var payload any
	switch msg.Type {
	case TypeTelemetry:
		if msg.Telemetry == nil {
			return nil, fmt.Errorf("encode %s: nil telemetry", msg.Type)
		}
		payload = msg.Telemetry
	case TypeDetections:
		dets := msg.Detections
		if dets == nil {
			dets = []Detection{}
		}
		payload = dets
	default:
		return nil, fmt.Errorf("encode: unknown frame type %q", msg.Type)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: msg.Type, Payload: raw})
}
