package tracking

import (
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name     string
		readyAt  *time.Time
		known    bool
		readyNow bool
		minutes  int
		text     string
	}{
		{name: "unknown", readyAt: nil},
		{name: "zeroTime", readyAt: &time.Time{}},
		{name: "thirtySecondsRoundsUp", readyAt: at(30 * time.Second), known: true, minutes: 1, text: "1 min"},
		{name: "exactMinutes", readyAt: at(10 * time.Minute), known: true, minutes: 10, text: "10 min"},
		{name: "partialMinute", readyAt: at(9*time.Minute + time.Second), known: true, minutes: 10, text: "10 min"},
		{name: "exactlyNow", readyAt: at(0), known: true, readyNow: true, text: "Ready now"},
		{name: "past", readyAt: at(-5 * time.Minute), known: true, readyNow: true, text: "Ready now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remaining(tt.readyAt, now)

			if got.Known != tt.known {
				t.Errorf("Known = %v, want %v", got.Known, tt.known)
			}
			if got.ReadyNow != tt.readyNow {
				t.Errorf("ReadyNow = %v, want %v", got.ReadyNow, tt.readyNow)
			}
			if got.Minutes != tt.minutes {
				t.Errorf("Minutes = %d, want %d", got.Minutes, tt.minutes)
			}
			if got.Text != tt.text {
				t.Errorf("Text = %q, want %q", got.Text, tt.text)
			}
		})
	}
}

func TestDerive(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    string
		wantIndex int
		wantName  string
		terminal  bool
	}{
		{name: "received", status: "received", wantIndex: 0, wantName: "received"},
		{name: "preparing", status: "preparing", wantIndex: 1, wantName: "preparing"},
		{name: "mixedCase", status: "Ready", wantIndex: 2, wantName: "ready"},
		{name: "served", status: "served", wantIndex: 3, wantName: "served"},
		{name: "completed", status: "completed", wantIndex: 4, wantName: "completed", terminal: true},
		{name: "unknownStatus", status: "archived", wantIndex: 0, wantName: "received"},
		{name: "emptyStatus", status: "", wantIndex: 0, wantName: "received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sampleOrder()
			o.Status = tt.status

			v := Derive(o, now)

			if !v.Found {
				t.Fatal("expected order to be found")
			}
			if v.StepIndex != tt.wantIndex {
				t.Errorf("StepIndex = %d, want %d", v.StepIndex, tt.wantIndex)
			}
			if v.Status != tt.wantName {
				t.Errorf("Status = %q, want %q", v.Status, tt.wantName)
			}
			if v.Terminal != tt.terminal {
				t.Errorf("Terminal = %v, want %v", v.Terminal, tt.terminal)
			}
			if len(v.Steps) != 5 {
				t.Fatalf("expected 5 steps, got %d", len(v.Steps))
			}
			for i, s := range v.Steps {
				if s.Done != (i <= tt.wantIndex) {
					t.Errorf("step %d Done = %v", i, s.Done)
				}
				if s.Current != (i == tt.wantIndex) {
					t.Errorf("step %d Current = %v", i, s.Current)
				}
			}
		})
	}
}

func TestDeriveNotFound(t *testing.T) {
	v := Derive(nil, time.Now())

	if v.Found {
		t.Error("expected not found view")
	}
	if v.Order != nil {
		t.Error("expected no order")
	}
	for i, s := range v.Steps {
		if s.Done || s.Current {
			t.Errorf("step %d should be pending", i)
		}
	}
}

func TestDeriveETA(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	readyAt := now.Add(30 * time.Second)

	o := sampleOrder()
	o.Status = "preparing"
	o.EstimatedReadyAt = &readyAt

	v := Derive(o, now)
	if v.ETA.Text != "1 min" {
		t.Errorf("ETA text = %q, want %q", v.ETA.Text, "1 min")
	}
}
