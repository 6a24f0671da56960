package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"quest-progression-system/logger"
	"quest-progression-system/models"
	"quest-progression-system/utils"

	"gorm.io/gorm"
)

const maxTitleLen = 120

// CreateHabitInput is the payload for a new quest.
type CreateHabitInput struct {
	Title      string `json:"title"`
	Difficulty int    `json:"difficulty"`
}

type HabitService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewHabitService(db *gorm.DB) *HabitService {
	return &HabitService{DB: db, Now: time.Now}
}

func (s *HabitService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Create adds a quest. The base reward is fixed from the clamped difficulty.
func (s *HabitService) Create(ctx context.Context, userID string, in CreateHabitInput) (*models.Habit, error) {
	const op = "habit.create"
	if strings.TrimSpace(userID) == "" {
		return nil, forbiddenErr(op, "missing user identity")
	}

	title := normalizeText(in.Title)
	if title == "" {
		return nil, validationErr(op, "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, validationErr(op, "title must be at most %d characters", maxTitleLen)
	}

	difficulty := models.ClampDifficulty(in.Difficulty)
	habit := models.Habit{
		UserID:     userID,
		Title:      title,
		Difficulty: difficulty,
		XPReward:   models.RewardForDifficulty(difficulty),
		IsActive:   true,
	}
	if err := s.DB.WithContext(ctx).Create(&habit).Error; err != nil {
		return nil, storeErr(op, err)
	}

	logger.Info("quest created", "user", userID, "habit", habit.ID, "difficulty", difficulty, "reward", habit.XPReward)
	return &habit, nil
}

// ListActive returns the user's active quests, newest first.
func (s *HabitService) ListActive(ctx context.Context, userID string) ([]models.Habit, error) {
	habits := []models.Habit{}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&habits).Error; err != nil {
		return nil, storeErr("habit.list", err)
	}
	return habits, nil
}

// Deactivate hides a quest. Its logs and streak stay for history and stats.
func (s *HabitService) Deactivate(ctx context.Context, userID, habitID string) error {
	const op = "habit.deactivate"
	var habit models.Habit
	if err := s.DB.WithContext(ctx).Where("id = ?", habitID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundErr(op, "quest not found")
		}
		return storeErr(op, err)
	}
	if habit.UserID != userID {
		return forbiddenErr(op, "quest belongs to another user")
	}
	if !habit.IsActive {
		return nil
	}

	if err := s.DB.WithContext(ctx).Model(&habit).Update("is_active", false).Error; err != nil {
		return storeErr(op, err)
	}
	logger.Info("quest deactivated", "user", userID, "habit", habitID)
	return nil
}

// TodayLogs maps each active quest to whether it is completed on day (today when empty).
func (s *HabitService) TodayLogs(ctx context.Context, userID, day string) (string, map[string]bool, error) {
	const op = "habit.today"
	d := utils.Today(s.now())
	if day != "" {
		parsed, err := utils.ParseDay(day)
		if err != nil {
			return "", nil, validationErr(op, "%v", err)
		}
		d = parsed
	}
	key := utils.FormatDay(d)

	habits, err := s.ListActive(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	out := make(map[string]bool, len(habits))
	for _, h := range habits {
		out[h.ID] = false
	}

	var done []string
	if err := s.DB.WithContext(ctx).Model(&models.HabitLog{}).
		Where("user_id = ? AND day = ? AND completed = ?", userID, key, true).
		Pluck("habit_id", &done).Error; err != nil {
		return "", nil, storeErr(op, err)
	}
	for _, id := range done {
		if _, ok := out[id]; ok {
			out[id] = true
		}
	}
	return key, out, nil
}
