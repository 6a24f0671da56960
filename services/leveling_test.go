package services

import "testing"

func TestLevelCurveRequired(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{0, 100},
		{1, 100},
		{2, 125},
		{3, 150},
		{10, 325},
	}
	for _, tt := range tests {
		if got := DefaultLevelCurve.Required(tt.level); got != tt.want {
			t.Errorf("Required(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestLevelCurveApply(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		xp, delta int64
		wantLevel int
		wantXP    int64
	}{
		{"no threshold", 1, 10, 20, 1, 30},
		{"exact threshold", 1, 80, 20, 2, 0},
		{"single rollover", 1, 90, 30, 2, 20},
		{"multiple rollovers", 1, 0, 100 + 125 + 150 + 5, 4, 5},
		{"zero delta", 3, 40, 0, 3, 40},
		{"level down", 2, 10, -30, 1, 80},
		{"several levels down", 4, 0, -(150 + 125 + 1), 1, 99},
		{"floor at level one", 1, 10, -500, 1, 0},
		{"floor after level down", 2, 5, -1000, 1, 0},
		{"invalid level treated as one", 0, 0, 50, 1, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, xp := DefaultLevelCurve.Apply(tt.level, tt.xp, tt.delta)
			if level != tt.wantLevel || xp != tt.wantXP {
				t.Errorf("Apply(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.level, tt.xp, tt.delta, level, xp, tt.wantLevel, tt.wantXP)
			}
		})
	}
}

func TestLevelCurveApplyIsReversible(t *testing.T) {
	for _, start := range []struct {
		level int
		xp    int64
	}{{1, 0}, {1, 95}, {2, 124}, {7, 3}} {
		for _, delta := range []int64{1, 20, 99, 300} {
			level, xp := DefaultLevelCurve.Apply(start.level, start.xp, delta)
			backLevel, backXP := DefaultLevelCurve.Apply(level, xp, -delta)
			if backLevel != start.level || backXP != start.xp {
				t.Errorf("(%d,%d) +%d -%d = (%d,%d)", start.level, start.xp, delta, delta, backLevel, backXP)
			}
		}
	}
}

func TestLevelCurveFlatStep(t *testing.T) {
	curve := LevelCurve{Base: 50, Step: 0}
	level, xp := curve.Apply(1, 0, 175)
	if level != 4 || xp != 25 {
		t.Errorf("Apply = (%d, %d), want (4, 25)", level, xp)
	}
}

func TestRankForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, "E"},
		{14, "E"},
		{15, "D"},
		{29, "D"},
		{30, "C"},
		{47, "C"},
		{48, "B"},
		{67, "B"},
		{68, "A"},
		{99, "A"},
		{100, "S"},
		{250, "S"},
	}
	for _, tt := range tests {
		if got := RankForLevel(tt.level); got != tt.want {
			t.Errorf("RankForLevel(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}
