package router

import (
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/protocol"
)

// Compile-time interface check.
var _ DataChannel = (*fakeChannel)(nil)

// fakeChannel captures the registered message sink so tests can push frames.
type fakeChannel struct {
	label string
	sink  func(webrtc.DataChannelMessage)
}

func (f *fakeChannel) Label() string { return f.label }

func (f *fakeChannel) OnMessage(fn func(msg webrtc.DataChannelMessage)) {
	f.sink = fn
}

func (f *fakeChannel) deliver(text string) {
	f.sink(webrtc.DataChannelMessage{IsString: true, Data: []byte(text)})
}

type recorder struct {
	telemetry  []protocol.Telemetry
	detections [][]protocol.Detection
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Telemetry:  func(t protocol.Telemetry) { r.telemetry = append(r.telemetry, t) },
		Detections: func(d []protocol.Detection) { r.detections = append(r.detections, d) },
	}
}

func TestRouteDispatchesByType(t *testing.T) {
	rec := &recorder{}
	dc := &fakeChannel{label: "telemetry"}
	New(rec.handlers()).Attach(dc)

	dc.deliver(`{"type":"detections","payload":[{"class":"cone","confidence":0.85,"x":0.32,"y":0.45,"w":0.12,"h":0.18}]}`)

	if len(rec.telemetry) != 0 {
		t.Fatalf("telemetry observer called %d times", len(rec.telemetry))
	}
	if len(rec.detections) != 1 || len(rec.detections[0]) != 1 {
		t.Fatalf("detections = %+v, want exactly one entry", rec.detections)
	}
	got := rec.detections[0][0]
	want := protocol.Detection{Class: "cone", Confidence: 0.85, X: 0.32, Y: 0.45, W: 0.12, H: 0.18}
	if got != want {
		t.Errorf("detection = %+v, want %+v", got, want)
	}

	dc.deliver(`{"type":"telemetry","payload":{"latitude":1,"longitude":2,"heading":3}}`)
	if len(rec.telemetry) != 1 || len(rec.detections) != 1 {
		t.Fatalf("after telemetry: telemetry=%d detections=%d", len(rec.telemetry), len(rec.detections))
	}
	if rec.telemetry[0].Heading != 3 {
		t.Errorf("heading = %v, want 3", rec.telemetry[0].Heading)
	}
}

func TestRouteDropsMalformedFrames(t *testing.T) {
	rec := &recorder{}
	r := New(rec.handlers())

	frames := []string{
		``,
		`not json`,
		`{"type":`,
		`{"type":"detections","payload":"cone"}`,
		`{"type":"telemetry","payload":null}`,
		`{"type":"unknown","payload":{}}`,
	}
	for _, f := range frames {
		r.Route([]byte(f))
	}

	if len(rec.telemetry) != 0 || len(rec.detections) != 0 {
		t.Errorf("observers called for bad frames: telemetry=%d detections=%d",
			len(rec.telemetry), len(rec.detections))
	}
}

func TestRouteNilHandlers(t *testing.T) {
	r := New(Handlers{})
	r.Route([]byte(`{"type":"telemetry","payload":{"latitude":1}}`))
	r.Route([]byte(`{"type":"detections","payload":[]}`))
}

func TestRouteTelemetryWithStringCoordinates(t *testing.T) {
	rec := &recorder{}
	dc := &fakeChannel{label: "telemetry"}
	New(rec.handlers()).Attach(dc)

	dc.deliver(`{"type":"telemetry","payload":{"latitude":"25.03","longitude":"121.56","heading":90}}`)

	if len(rec.telemetry) != 1 {
		t.Fatalf("telemetry observer called %d times, want 1", len(rec.telemetry))
	}
	got := rec.telemetry[0]
	if got.Latitude != 25.03 || got.Longitude != 121.56 || got.Heading != 90 {
		t.Errorf("telemetry = %+v", got)
	}
}
