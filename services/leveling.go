package services

// Reference level curve: 100 XP for level 1 → 2, +25 per level after that.
const (
	DefaultXPBase     = 100
	DefaultXPPerLevel = 25
)

// LevelCurve maps a level to the XP needed to reach the next one.
type LevelCurve struct {
	Base int64
	Step int64
}

// DefaultLevelCurve is the curve used when a user has no settings row.
var DefaultLevelCurve = LevelCurve{Base: DefaultXPBase, Step: DefaultXPPerLevel}

// Required returns the XP needed to go from level to level+1.
// Levels below 1 are treated as 1.
func (c LevelCurve) Required(level int) int64 {
	if level < 1 {
		level = 1
	}
	return c.Base + int64(level-1)*c.Step
}

// Apply moves (level, xp) by delta, rolling over level thresholds in either direction.
// A negative result is floored at level 1 with 0 XP.
func (c LevelCurve) Apply(level int, xp, delta int64) (int, int64) {
	if level < 1 {
		level = 1
	}
	xp += delta

	for xp >= c.Required(level) {
		xp -= c.Required(level)
		level++
	}

	for xp < 0 {
		if level == 1 {
			xp = 0
			break
		}
		level--
		xp += c.Required(level)
	}

	return level, xp
}

// rankThresholds are checked top-down; the first minimum reached wins.
var rankThresholds = []struct {
	MinLevel int
	Rank     string
}{
	{100, "S"},
	{68, "A"},
	{48, "B"},
	{30, "C"},
	{15, "D"},
}

// RankForLevel classifies a level into a hunter rank, E through S.
func RankForLevel(level int) string {
	for _, t := range rankThresholds {
		if level >= t.MinLevel {
			return t.Rank
		}
	}
	return "E"
}
