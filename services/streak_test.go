package services

import (
	"testing"
	"time"

	"quest-progression-system/models"
	"quest-progression-system/utils"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", s, err)
	}
	return d
}

func days(t *testing.T, ss ...string) []time.Time {
	t.Helper()
	out := make([]time.Time, 0, len(ss))
	for _, s := range ss {
		out = append(out, day(t, s))
	}
	return out
}

func TestStreakCompleteStrict(t *testing.T) {
	p := DefaultStreakPolicy
	var s StreakSnapshot

	s = p.Complete(s, day(t, "2026-03-01"))
	if s.Current != 1 || s.Best != 1 {
		t.Fatalf("first completion = %+v, want current 1 best 1", s)
	}
	s = p.Complete(s, day(t, "2026-03-02"))
	if s.Current != 2 || s.Best != 2 {
		t.Fatalf("consecutive day = %+v, want current 2 best 2", s)
	}
	s = p.Complete(s, day(t, "2026-03-02"))
	if s.Current != 2 {
		t.Fatalf("same day twice changed the streak: %+v", s)
	}
	s = p.Complete(s, day(t, "2026-03-04"))
	if s.Current != 1 || s.Best != 2 {
		t.Fatalf("after a missed day = %+v, want current 1 best 2", s)
	}
	if got := utils.FormatDay(*s.LastCompleted); got != "2026-03-04" {
		t.Errorf("LastCompleted = %s, want 2026-03-04", got)
	}
}

func TestStreakGraceMode(t *testing.T) {
	p := StreakPolicy{Mode: models.StreakModeGrace, GraceDays: 1}
	var s StreakSnapshot
	s = p.Complete(s, day(t, "2026-03-01"))
	s = p.Complete(s, day(t, "2026-03-03")) // one day skipped
	if s.Current != 2 {
		t.Fatalf("grace gap of 2 = %+v, want current 2", s)
	}
	s = p.Complete(s, day(t, "2026-03-06")) // two days skipped
	if s.Current != 1 || s.Best != 2 {
		t.Fatalf("gap of 3 with 1 grace day = %+v, want current 1 best 2", s)
	}
}

func TestStreakGraceZeroIsStrict(t *testing.T) {
	p := StreakPolicy{Mode: models.StreakModeGrace, GraceDays: 0}
	if p.Continues(day(t, "2026-03-01"), day(t, "2026-03-03")) {
		t.Error("grace mode with zero grace days must behave like strict")
	}
	if !p.Continues(day(t, "2026-03-01"), day(t, "2026-03-02")) {
		t.Error("consecutive days must continue")
	}
}

func TestStreakReplay(t *testing.T) {
	p := DefaultStreakPolicy
	tests := []struct {
		name        string
		ledger      []string
		wantCurrent int
		wantBest    int
		wantLast    string
	}{
		{"empty", nil, 0, 0, ""},
		{"single", []string{"2026-03-05"}, 1, 1, "2026-03-05"},
		{"run", []string{"2026-03-01", "2026-03-02", "2026-03-03"}, 3, 3, "2026-03-03"},
		{"unordered", []string{"2026-03-03", "2026-03-01", "2026-03-02"}, 3, 3, "2026-03-03"},
		{"broken run", []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-05"}, 1, 3, "2026-03-05"},
		{"duplicates", []string{"2026-03-01", "2026-03-01", "2026-03-02"}, 2, 2, "2026-03-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := p.Replay(days(t, tt.ledger...))
			if s.Current != tt.wantCurrent || s.Best != tt.wantBest {
				t.Errorf("Replay = current %d best %d, want %d %d", s.Current, s.Best, tt.wantCurrent, tt.wantBest)
			}
			var last string
			if s.LastCompleted != nil {
				last = utils.FormatDay(*s.LastCompleted)
			}
			if last != tt.wantLast {
				t.Errorf("LastCompleted = %q, want %q", last, tt.wantLast)
			}
		})
	}
}

func TestStreakReplayMatchesIncremental(t *testing.T) {
	p := DefaultStreakPolicy
	ledger := days(t, "2026-02-27", "2026-02-28", "2026-03-01", "2026-03-03", "2026-03-04")

	var incremental StreakSnapshot
	for _, d := range ledger {
		incremental = p.Complete(incremental, d)
	}
	replayed := p.Replay(ledger)
	if incremental.Current != replayed.Current || incremental.Best != replayed.Best {
		t.Errorf("incremental %+v != replayed %+v", incremental, replayed)
	}
}

func TestRebaseKeepsBest(t *testing.T) {
	prev := StreakSnapshot{Current: 5, Best: 9}
	replayed := StreakSnapshot{Current: 2, Best: 4}
	got := Rebase(prev, replayed)
	if got.Current != 2 || got.Best != 9 {
		t.Errorf("Rebase = %+v, want current 2 best 9", got)
	}

	got = Rebase(StreakSnapshot{Best: 1}, StreakSnapshot{Current: 3, Best: 3})
	if got.Best != 3 {
		t.Errorf("Rebase best = %d, want 3", got.Best)
	}
}

func TestStreakStateRoundTrip(t *testing.T) {
	last := "2026-03-04"
	st := &models.StreakState{CurrentStreak: 2, BestStreak: 5, LastCompletedDay: &last}
	s, err := snapshotFromState(st)
	if err != nil {
		t.Fatalf("snapshotFromState: %v", err)
	}
	if s.Current != 2 || s.Best != 5 || utils.FormatDay(*s.LastCompleted) != last {
		t.Fatalf("snapshot = %+v", s)
	}

	applySnapshot(st, StreakSnapshot{})
	if st.CurrentStreak != 0 || st.BestStreak != 0 || st.LastCompletedDay != nil {
		t.Errorf("applySnapshot(empty) left %+v", st)
	}

	bad := "03/04/2026"
	if _, err := snapshotFromState(&models.StreakState{LastCompletedDay: &bad}); err == nil {
		t.Error("expected error for malformed stored day")
	}
}
