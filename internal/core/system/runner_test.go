package system

import (
	"testing"
	"time"
)

type recordingSystem struct {
	phase Phase
	name  string
	log   *[]string
}

func (s *recordingSystem) Phase() Phase { return s.phase }

func (s *recordingSystem) Update(time.Duration) {
	*s.log = append(*s.log, s.name)
}

func TestRunnerExecutesPhasesInOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	// 故意亂序註冊。
	r.Register(&recordingSystem{phase: PhaseCleanup, name: "cleanup", log: &log})
	r.Register(&recordingSystem{phase: PhaseEvents, name: "events", log: &log})
	r.Register(&recordingSystem{phase: PhasePersist, name: "persist", log: &log})
	r.Register(&recordingSystem{phase: PhaseStreaming, name: "streaming", log: &log})
	r.Register(&recordingSystem{phase: PhaseUpdate, name: "update", log: &log})

	r.Tick(time.Millisecond)

	want := []string{"events", "update", "streaming", "persist", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("ran %d systems, want %d", len(log), len(want))
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order = %v, want %v", log, want)
		}
	}
}

func TestRunnerKeepsRegistrationOrderWithinPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recordingSystem{phase: PhaseStreaming, name: "streaming", log: &log})
	r.Register(&recordingSystem{phase: PhaseStreaming, name: "warp", log: &log})

	r.Tick(time.Millisecond)
	r.Tick(time.Millisecond)

	want := []string{"streaming", "warp", "streaming", "warp"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order = %v, want %v", log, want)
		}
	}
}

func TestRunnerResortsAfterLateRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recordingSystem{phase: PhaseUpdate, name: "update", log: &log})
	r.Tick(time.Millisecond)

	r.Register(&recordingSystem{phase: PhaseEvents, name: "events", log: &log})
	log = log[:0]
	r.Tick(time.Millisecond)

	if len(log) != 2 || log[0] != "events" || log[1] != "update" {
		t.Fatalf("order after late registration = %v", log)
	}
}
