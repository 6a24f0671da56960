package services

import (
	"sort"
	"time"

	"quest-progression-system/models"
	"quest-progression-system/utils"
)

// StreakPolicy decides whether two completion days belong to the same streak.
type StreakPolicy struct {
	Mode      string // models.StreakModeStrict or models.StreakModeGrace
	GraceDays int
}

// DefaultStreakPolicy requires completions on consecutive days.
var DefaultStreakPolicy = StreakPolicy{Mode: models.StreakModeStrict}

// maxGap is the largest day gap that still continues a streak.
func (p StreakPolicy) maxGap() int {
	if p.Mode == models.StreakModeGrace && p.GraceDays > 0 {
		return 1 + p.GraceDays
	}
	return 1
}

// Continues reports whether a completion on next extends a streak last completed on prev.
func (p StreakPolicy) Continues(prev, next time.Time) bool {
	gap := utils.DaysBetween(prev, next)
	return gap >= 1 && gap <= p.maxGap()
}

// StreakSnapshot is the streak of one habit.
type StreakSnapshot struct {
	Current       int
	Best          int
	LastCompleted *time.Time
}

// Complete applies a completion on day. Day must not be before LastCompleted;
// out-of-order days go through Replay instead.
func (p StreakPolicy) Complete(s StreakSnapshot, day time.Time) StreakSnapshot {
	day = utils.DayOf(day)
	if s.LastCompleted != nil && utils.DaysBetween(*s.LastCompleted, day) == 0 {
		return s
	}

	if s.LastCompleted != nil && p.Continues(*s.LastCompleted, day) {
		s.Current++
	} else {
		s.Current = 1
	}
	s.LastCompleted = &day
	if s.Current > s.Best {
		s.Best = s.Current
	}
	return s
}

// Replay rebuilds a streak from the full ledger of completed days.
// Current is the run ending at the latest day, Best the longest run seen.
func (p StreakPolicy) Replay(days []time.Time) StreakSnapshot {
	ordered := make([]time.Time, 0, len(days))
	for _, d := range days {
		ordered = append(ordered, utils.DayOf(d))
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	var s StreakSnapshot
	for _, d := range ordered {
		s = p.Complete(s, d)
	}
	return s
}

// Rebase keeps the historical best of prev while taking the current run from replayed.
// Best never goes down.
func Rebase(prev, replayed StreakSnapshot) StreakSnapshot {
	out := replayed
	if prev.Best > out.Best {
		out.Best = prev.Best
	}
	return out
}

func snapshotFromState(st *models.StreakState) (StreakSnapshot, error) {
	s := StreakSnapshot{Current: st.CurrentStreak, Best: st.BestStreak}
	if st.LastCompletedDay != nil {
		d, err := utils.ParseDay(*st.LastCompletedDay)
		if err != nil {
			return s, err
		}
		s.LastCompleted = &d
	}
	return s, nil
}

func applySnapshot(st *models.StreakState, s StreakSnapshot) {
	st.CurrentStreak = s.Current
	st.BestStreak = s.Best
	if s.LastCompleted == nil {
		st.LastCompletedDay = nil
		return
	}
	day := utils.FormatDay(*s.LastCompleted)
	st.LastCompletedDay = &day
}
