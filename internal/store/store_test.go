package store

import (
	"encoding/json"
	"testing"

	"github.com/1ureka/roverlink/internal/protocol"
	"github.com/1ureka/roverlink/internal/session"
)

func TestSnapshotReflectsUpdates(t *testing.T) {
	s := New(0)
	obs := s.Observers()

	obs.Status(session.PhaseConnected)
	obs.Telemetry(protocol.Telemetry{Latitude: 25.03, Longitude: 121.56, Heading: 90})
	obs.Detections([]protocol.Detection{{Class: "person", Confidence: 0.9}})

	st := s.Snapshot()
	if st.Status != session.PhaseConnected {
		t.Errorf("status = %s, want connected", st.Status)
	}
	if st.Telemetry == nil || st.Telemetry.Heading != 90 {
		t.Errorf("telemetry = %+v", st.Telemetry)
	}
	if len(st.Path) != 1 || st.Path[0].Latitude != 25.03 {
		t.Errorf("path = %v", st.Path)
	}
	if len(st.Detections) != 1 || st.Detections[0].Class != "person" {
		t.Errorf("detections = %v", st.Detections)
	}
}

func TestPathHistoryIsBounded(t *testing.T) {
	s := New(3)
	for i := 1; i <= 5; i++ {
		s.UpdateTelemetry(protocol.Telemetry{Latitude: float64(i), Longitude: 1})
	}
	s.UpdateTelemetry(protocol.Telemetry{}) // no fix

	path := s.Snapshot().Path
	if len(path) != 3 {
		t.Fatalf("expected 3 points, got %d", len(path))
	}
	for i, want := range []float64{3, 4, 5} {
		if path[i].Latitude != want {
			t.Errorf("path[%d] = %v, want lat %v", i, path[i], want)
		}
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := New(0)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetConnectionStatus(session.PhaseNegotiating)
	s.UpdateDetections(nil)

	ev := <-ch
	if ev.Kind != KindStatus || ev.Status == nil || *ev.Status != session.PhaseNegotiating {
		t.Errorf("first event = %+v", ev)
	}
	ev = <-ch
	if ev.Kind != KindDetections {
		t.Errorf("second event kind = %s", ev.Kind)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New(0)
	_, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		s.SetConnectionStatus(session.Phase(i % 3))
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := New(0)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	s.SetConnectionStatus(session.PhaseFailed)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(0)
	s.UpdateDetections([]protocol.Detection{{Class: "car"}})

	st := s.Snapshot()
	st.Detections[0].Class = "mutated"

	if s.Snapshot().Detections[0].Class != "car" {
		t.Fatal("snapshot shares memory with the store")
	}
}

func TestEmptyDetectionBatchIsEncoded(t *testing.T) {
	s := New(0)
	events, cancel := s.Subscribe()
	defer cancel()

	obs := s.Observers()
	obs.Detections(nil)
	obs.Status(session.PhaseConnected)

	for _, want := range []string{
		`{"kind":"detections","detections":[]}`,
		`{"kind":"status","status":"connected"}`,
	} {
		ev := <-events
		got, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal %s event: %v", ev.Kind, err)
		}
		if string(got) != want {
			t.Errorf("event = %s, want %s", got, want)
		}
	}
}
