package services

import (
	"context"
	"sort"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"
	"quest-progression-system/utils"

	"gorm.io/gorm"
)

const (
	heatmapDays = 84
	weeklyWeeks = 12
	topQuests   = 8
)

type HeatCell struct {
	Day   string `json:"day"`
	XP    int64  `json:"xp"`
	Level int    `json:"level"`
}

type WeekTotal struct {
	WeekStart string `json:"week_start"`
	XP        int64  `json:"xp"`
}

type QuestTotal struct {
	HabitID     string `json:"habit_id"`
	Title       string `json:"title"`
	XP          int64  `json:"xp"`
	Completions int    `json:"completions"`
}

// StatsReport summarises completed logs over the heatmap window.
type StatsReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Heatmap     []HeatCell   `json:"heatmap"`
	TotalXP     int64        `json:"total_xp"`
	MaxDayXP    int64        `json:"max_day_xp"`
	Weekly      []WeekTotal  `json:"weekly"`
	TopQuests   []QuestTotal `json:"top_quests"`
	DoneToday   int          `json:"done_today"`
}

type StatsService struct {
	DB    *gorm.DB
	Cache StatsCache
	Now   func() time.Time
}

func NewStatsService(db *gorm.DB, cache StatsCache) *StatsService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	return &StatsService{DB: db, Cache: cache, Now: time.Now}
}

func (s *StatsService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Report returns the user's stats, served from cache when fresh.
func (s *StatsService) Report(ctx context.Context, userID string) (*StatsReport, error) {
	const op = "stats.report"

	cached, gen, err := s.Cache.Get(ctx, userID)
	if err != nil {
		logger.Warn("stats cache read failed", "user", userID, "error", err)
	}
	if cached != nil && cached.To == utils.FormatDay(utils.Today(s.now())) {
		return cached, nil
	}

	report, err := s.build(ctx, userID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if err := s.Cache.Set(ctx, userID, gen, report); err != nil {
		logger.Warn("stats cache write failed", "user", userID, "error", err)
	}
	return report, nil
}

type dayTotalRow struct {
	HabitID string
	Day     string
	XPGain  int64
}

func (s *StatsService) build(ctx context.Context, userID string) (*StatsReport, error) {
	now := s.now()
	today := utils.Today(now)
	from := utils.AddDays(today, -(heatmapDays - 1))
	// The weekly window starts on a Monday inside the heatmap window, so one query covers both.
	weeksFrom := utils.AddDays(utils.StartOfWeek(today), -7*(weeklyWeeks-1))

	var rows []dayTotalRow
	if err := s.DB.WithContext(ctx).Model(&models.HabitLog{}).
		Select("habit_id, day, xp_gain").
		Where("user_id = ? AND completed = ? AND day BETWEEN ? AND ?",
			userID, true, utils.FormatDay(from), utils.FormatDay(today)).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	report := &StatsReport{
		GeneratedAt: now.UTC(),
		From:        utils.FormatDay(from),
		To:          utils.FormatDay(today),
	}

	perDay := make(map[string]int64)
	perWeek := make(map[string]int64)
	perQuest := make(map[string]*QuestTotal)
	todayKey := report.To
	for _, r := range rows {
		d, err := utils.ParseDay(r.Day)
		if err != nil {
			continue
		}
		perWeek[utils.FormatDay(utils.StartOfWeek(d))] += r.XPGain
		perDay[r.Day] += r.XPGain
		report.TotalXP += r.XPGain
		q, ok := perQuest[r.HabitID]
		if !ok {
			q = &QuestTotal{HabitID: r.HabitID}
			perQuest[r.HabitID] = q
		}
		q.XP += r.XPGain
		q.Completions++
		if r.Day == todayKey {
			report.DoneToday++
		}
	}

	for _, xp := range perDay {
		report.MaxDayXP = max(report.MaxDayXP, xp)
	}
	report.Heatmap = make([]HeatCell, 0, heatmapDays)
	for i := 0; i < heatmapDays; i++ {
		key := utils.FormatDay(utils.AddDays(from, i))
		xp := perDay[key]
		report.Heatmap = append(report.Heatmap, HeatCell{Day: key, XP: xp, Level: heatLevel(xp, report.MaxDayXP)})
	}

	report.Weekly = make([]WeekTotal, 0, weeklyWeeks)
	for i := 0; i < weeklyWeeks; i++ {
		key := utils.FormatDay(utils.AddDays(weeksFrom, 7*i))
		report.Weekly = append(report.Weekly, WeekTotal{WeekStart: key, XP: perWeek[key]})
	}

	top, err := s.topQuests(ctx, userID, perQuest)
	if err != nil {
		return nil, err
	}
	report.TopQuests = top
	return report, nil
}

// topQuests ranks quests by XP and attaches titles, including deactivated quests.
func (s *StatsService) topQuests(ctx context.Context, userID string, perQuest map[string]*QuestTotal) ([]QuestTotal, error) {
	out := make([]QuestTotal, 0, len(perQuest))
	for _, q := range perQuest {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].HabitID < out[j].HabitID
	})
	if len(out) > topQuests {
		out = out[:topQuests]
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i, q := range out {
		ids[i] = q.HabitID
	}
	var habits []models.Habit
	if err := s.DB.WithContext(ctx).Select("id, title").
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&habits).Error; err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(habits))
	for _, h := range habits {
		titles[h.ID] = h.Title
	}
	for i := range out {
		out[i].Title = titles[out[i].HabitID]
	}
	return out, nil
}

// heatLevel buckets a day's XP relative to the busiest day: 0 for none, 1..5 otherwise.
func heatLevel(xp, maxXP int64) int {
	if xp <= 0 || maxXP <= 0 {
		return 0
	}
	ratio := float64(xp) / float64(maxXP)
	switch {
	case ratio < 0.2:
		return 1
	case ratio < 0.4:
		return 2
	case ratio < 0.6:
		return 3
	case ratio < 0.85:
		return 4
	default:
		return 5
	}
}
