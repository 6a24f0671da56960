package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"
	"quest-progression-system/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxGrantXP = 1_000_000

var forUpdate = clause.Locking{Strength: "UPDATE"}

// ToggleRequest marks a quest completed or not completed for one calendar day.
type ToggleRequest struct {
	HabitID   string
	Day       string // YYYY-MM-DD
	Completed bool
}

// ToggleResult is the snapshot returned after a toggle commits.
// XPGain is the signed XP applied to the profile: positive for a completion and
// negative for a reversal. A no-op replays the stored gain of a completed day, or
// zero for a day that was never completed. PreviousLevel and LeveledUp describe
// the call itself, so a no-op reports the current level and false.
type ToggleResult struct {
	Level         int     `json:"level"`
	XP            int64   `json:"xp"`
	Rank          string  `json:"rank"`
	CurrentStreak int     `json:"current_streak"`
	BestStreak    int     `json:"best_streak"`
	XPBase        int64   `json:"xp_base"`
	XPMult        float64 `json:"xp_mult"`
	XPGain        int64   `json:"xp_gain"`
	XPRequired    int64   `json:"xp_required"`
	PreviousLevel int     `json:"previous_level"`
	LeveledUp     bool    `json:"leveled_up"`
	Changed       bool    `json:"changed"`
}

type ProgressionService struct {
	DB     *gorm.DB
	Locker Locker
	Cache  StatsCache
	Now    func() time.Time

	// afterStreakUpdate runs inside the toggle transaction once the streak row is written
	// and before the profile is touched. Tests use it to inject failures.
	afterStreakUpdate func() error
}

func NewProgressionService(db *gorm.DB, locker Locker, cache StatsCache) *ProgressionService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if cache == nil {
		cache = NoopStatsCache{}
	}
	return &ProgressionService{DB: db, Locker: locker, Cache: cache, Now: time.Now}
}

func (s *ProgressionService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// EnsureProfile ensures a Profile row exists (idempotent) and returns it.
func (s *ProgressionService) EnsureProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "profile.ensure"
	var prof *models.Profile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := ensureProfileTx(tx, userID, false)
		prof = p
		return err
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return prof, nil
}

// ensureProfileTx creates the default profile if missing and reads it back,
// holding a row lock when lock is set.
func ensureProfileTx(tx *gorm.DB, userID string, lock bool) (*models.Profile, error) {
	def := models.NewProfile(userID)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&def).Error; err != nil {
		return nil, err
	}

	q := tx
	if lock {
		q = q.Clauses(forUpdate)
	}
	var prof models.Profile
	if err := q.Where("user_id = ?", userID).First(&prof).Error; err != nil {
		return nil, err
	}
	return &prof, nil
}

// ToggleQuest atomically marks a quest done or undone for a day and returns the new snapshot.
// Profile, streak, log and audit event are written in one transaction.
func (s *ProgressionService) ToggleQuest(ctx context.Context, userID string, req ToggleRequest) (*ToggleResult, error) {
	const op = "toggle_quest"

	if strings.TrimSpace(userID) == "" {
		return nil, forbiddenErr(op, "missing user identity")
	}
	if strings.TrimSpace(req.HabitID) == "" {
		return nil, validationErr(op, "habit_id is required")
	}
	day, err := utils.ParseDay(req.Day)
	if err != nil {
		return nil, validationErr(op, "%v", err)
	}
	if utils.DaysBetween(utils.Today(s.now()), day) > 1 {
		return nil, validationErr(op, "day %s is in the future", req.Day)
	}
	dayKey := utils.FormatDay(day)

	release, err := s.Locker.Acquire(ctx, toggleLockKey(userID, req.HabitID, dayKey))
	if err != nil {
		return nil, err
	}
	defer release()

	var result *ToggleResult
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.toggleTx(tx, userID, req.HabitID, day, req.Completed)
		result = r
		return err
	})
	if err != nil {
		logger.Warn("toggle failed", "user", userID, "habit", req.HabitID, "day", dayKey, "error", err)
		return nil, storeErr(op, err)
	}

	if result.Changed {
		if err := s.Cache.Invalidate(ctx, userID); err != nil {
			logger.Warn("failed to invalidate stats cache", "user", userID, "error", err)
		}
		logger.Info("quest toggled",
			"user", userID, "habit", req.HabitID, "day", dayKey, "completed", req.Completed,
			"gain", result.XPGain, "level", result.Level, "xp", result.XP, "streak", result.CurrentStreak)
	}
	return result, nil
}

func (s *ProgressionService) toggleTx(tx *gorm.DB, userID, habitID string, day time.Time, completed bool) (*ToggleResult, error) {
	const op = "toggle_quest"
	dayKey := utils.FormatDay(day)

	habit, err := ownedHabit(tx, op, userID, habitID)
	if err != nil {
		return nil, err
	}

	prof, err := ensureProfileTx(tx, userID, true)
	if err != nil {
		return nil, err
	}

	settings, err := loadSettings(tx, userID)
	if err != nil {
		return nil, err
	}
	pol := PoliciesFromSettings(settings)

	entry := models.HabitLog{UserID: userID, HabitID: habit.ID, Day: dayKey, XPMult: 1}
	logExists := true
	if err := tx.Clauses(forUpdate).Where("habit_id = ? AND day = ?", habit.ID, dayKey).First(&entry).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		logExists = false
	}

	streak := models.StreakState{UserID: userID, HabitID: habit.ID}
	streakExists := true
	if err := tx.Clauses(forUpdate).Where("habit_id = ?", habit.ID).First(&streak).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		streakExists = false
	}
	snap, err := snapshotFromState(&streak)
	if err != nil {
		return nil, err
	}

	wasCompleted := logExists && entry.Completed
	if wasCompleted == completed {
		res := buildResult(prof, &streak, pol.Curve)
		res.PreviousLevel = prof.Level
		if wasCompleted {
			res.XPBase, res.XPMult, res.XPGain = entry.XPBase, entry.XPMult, entry.XPGain
		} else {
			res.XPBase, res.XPMult = habit.XPReward, 1
		}
		return res, nil
	}

	ledger, err := completedDays(tx, habit.ID, dayKey)
	if err != nil {
		return nil, err
	}

	var (
		delta int64
		base  int64
		mult  float64
		kind  models.XPEventKind
	)
	if completed {
		if snap.LastCompleted == nil || day.After(*snap.LastCompleted) {
			snap = pol.Streak.Complete(snap, day)
		} else {
			snap = Rebase(snap, pol.Streak.Replay(append(ledger, day)))
		}
		gain, m := pol.Multiplier.Gain(habit.XPReward, snap.Current)
		delta, base, mult, kind = gain, habit.XPReward, m, models.XPEventQuestCompleted
		entry.Completed, entry.XPBase, entry.XPMult, entry.XPGain = true, base, mult, gain
	} else {
		snap = Rebase(snap, pol.Streak.Replay(ledger))
		delta, base, mult, kind = -entry.XPGain, entry.XPBase, entry.XPMult, models.XPEventQuestReverted
		entry.Completed, entry.XPBase, entry.XPMult, entry.XPGain = false, 0, 1, 0
	}

	if logExists {
		err = tx.Save(&entry).Error
	} else {
		err = tx.Create(&entry).Error
	}
	if err != nil {
		return nil, err
	}

	applySnapshot(&streak, snap)
	if streakExists {
		err = tx.Save(&streak).Error
	} else {
		err = tx.Create(&streak).Error
	}
	if err != nil {
		return nil, err
	}

	if s.afterStreakUpdate != nil {
		if err := s.afterStreakUpdate(); err != nil {
			return nil, err
		}
	}

	prevLevel := prof.Level
	applyXP(prof, pol.Curve, delta, s.now())
	if err := tx.Save(prof).Error; err != nil {
		return nil, err
	}

	habitRef, dayRef := habit.ID, dayKey
	event := models.XPEvent{
		UserID:      userID,
		HabitID:     &habitRef,
		Day:         &dayRef,
		Kind:        kind,
		Delta:       delta,
		LevelBefore: prevLevel,
		LevelAfter:  prof.Level,
		XPAfter:     prof.XP,
		Metadata: datatypes.JSONMap{
			"xp_base":        base,
			"xp_mult":        mult,
			"current_streak": snap.Current,
		},
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, err
	}

	res := buildResult(prof, &streak, pol.Curve)
	res.XPBase, res.XPMult, res.XPGain = base, roundMult(mult), delta
	res.PreviousLevel = prevLevel
	res.LeveledUp = prof.Level > prevLevel
	res.Changed = true
	return res, nil
}

// ownedHabit loads an active habit and checks ownership.
func ownedHabit(tx *gorm.DB, op, userID, habitID string) (*models.Habit, error) {
	var habit models.Habit
	if err := tx.Where("id = ?", habitID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr(op, "quest not found")
		}
		return nil, err
	}
	if habit.UserID != userID {
		return nil, forbiddenErr(op, "quest belongs to another user")
	}
	if !habit.IsActive {
		return nil, notFoundErr(op, "quest not found")
	}
	return &habit, nil
}

// completedDays returns the habit's completed days, leaving out exclude.
func completedDays(tx *gorm.DB, habitID, exclude string) ([]time.Time, error) {
	var keys []string
	if err := tx.Model(&models.HabitLog{}).
		Where("habit_id = ? AND completed = ? AND day <> ?", habitID, true, exclude).
		Order("day ASC").
		Pluck("day", &keys).Error; err != nil {
		return nil, err
	}
	days := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		d, err := utils.ParseDay(k)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

// applyXP moves the profile along the curve and stamps level/rank milestones.
func applyXP(prof *models.Profile, curve LevelCurve, delta int64, now time.Time) {
	oldLevel, oldRank := prof.Level, prof.Rank
	prof.Level, prof.XP = curve.Apply(prof.Level, prof.XP, delta)
	prof.Rank = RankForLevel(prof.Level)
	if prof.Level > oldLevel {
		t := now
		prof.LastLevelUpAt = &t
		if prof.Rank != oldRank {
			prof.LastRankUpAt = &t
		}
	}
}

func buildResult(prof *models.Profile, streak *models.StreakState, curve LevelCurve) *ToggleResult {
	return &ToggleResult{
		Level:         prof.Level,
		XP:            prof.XP,
		Rank:          prof.Rank,
		CurrentStreak: streak.CurrentStreak,
		BestStreak:    streak.BestStreak,
		XPRequired:    curve.Required(prof.Level),
	}
}

func roundMult(m float64) float64 {
	return math.Round(m*100) / 100
}

// AwardXP atomically applies a signed XP delta outside of quest toggles (dev and admin tools).
func (s *ProgressionService) AwardXP(ctx context.Context, userID string, amount int64, kind models.XPEventKind, reason string) (*models.Profile, error) {
	const op = "award_xp"
	if strings.TrimSpace(userID) == "" {
		return nil, validationErr(op, "user_id is required")
	}
	if amount == 0 || amount > maxGrantXP || amount < -maxGrantXP {
		return nil, validationErr(op, "xp must be non-zero and within ±%d", maxGrantXP)
	}

	var updated models.Profile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prof, err := ensureProfileTx(tx, userID, true)
		if err != nil {
			return err
		}
		settings, err := loadSettings(tx, userID)
		if err != nil {
			return err
		}
		curve := PoliciesFromSettings(settings).Curve

		before := prof.Level
		applyXP(prof, curve, amount, s.now())
		if err := tx.Save(prof).Error; err != nil {
			return err
		}

		event := models.XPEvent{
			UserID:      userID,
			Kind:        kind,
			Delta:       amount,
			LevelBefore: before,
			LevelAfter:  prof.Level,
			XPAfter:     prof.XP,
			Metadata:    datatypes.JSONMap{"reason": reason},
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		updated = *prof
		return nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}

	logger.Info("XP awarded", "user", userID, "xp", amount, "level", updated.Level, "rank", updated.Rank, "reason", reason)
	return &updated, nil
}

// ProfileView is the status screen: progression plus today's completion count.
type ProfileView struct {
	models.Profile
	XPRequired   int64 `json:"xp_required"`
	ProgressPct  int   `json:"progress_pct"`
	DoneToday    int64 `json:"done_today"`
	ActiveQuests int64 `json:"active_quests"`
}

func (s *ProgressionService) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	const op = "profile.get"
	prof, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	settings, err := loadSettings(db, userID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	curve := PoliciesFromSettings(settings).Curve

	view := &ProfileView{Profile: *prof, XPRequired: curve.Required(prof.Level)}
	if view.XPRequired > 0 {
		pct := int(math.Round(float64(prof.XP) / float64(view.XPRequired) * 100))
		view.ProgressPct = min(100, pct)
	}

	today := utils.FormatDay(utils.Today(s.now()))
	if err := db.Model(&models.HabitLog{}).
		Where("user_id = ? AND day = ? AND completed = ?", userID, today, true).
		Count(&view.DoneToday).Error; err != nil {
		return nil, storeErr(op, err)
	}
	if err := db.Model(&models.Habit{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&view.ActiveQuests).Error; err != nil {
		return nil, storeErr(op, err)
	}
	return view, nil
}

// HistoryPage is one page of XP events, newest first.
type HistoryPage struct {
	Events     []models.XPEvent `json:"events"`
	Page       int              `json:"page"`
	Size       int              `json:"size"`
	TotalItems int64            `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

// GetUserHistory returns paginated XP history
func (s *ProgressionService) GetUserHistory(ctx context.Context, userID string, page, size int) (*HistoryPage, error) {
	const op = "history.get"
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	db := s.DB.WithContext(ctx)
	var total int64
	if err := db.Model(&models.XPEvent{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, storeErr(op, err)
	}

	events := []models.XPEvent{}
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset(offset).
		Find(&events).Error; err != nil {
		return nil, storeErr(op, err)
	}

	return &HistoryPage{
		Events:     events,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}
