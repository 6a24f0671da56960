package services

import (
	"context"

	"quest-progression-system/models"
	"quest-progression-system/utils"
)

const (
	simulateDays = 7
	maxDevXP     = 100_000
)

// DevService exposes testing shortcuts. Every action requires dev_mode in the user's settings.
type DevService struct {
	Progression *ProgressionService
	Habits      *HabitService
	Settings    *SettingsService
}

func NewDevService(progression *ProgressionService, habits *HabitService, settings *SettingsService) *DevService {
	return &DevService{Progression: progression, Habits: habits, Settings: settings}
}

func (s *DevService) requireDevMode(ctx context.Context, op, userID string) error {
	st, err := s.Settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !st.DevMode {
		return forbiddenErr(op, "dev mode is disabled")
	}
	return nil
}

// AddXP grants amount XP through the normal rollover.
func (s *DevService) AddXP(ctx context.Context, userID string, amount int64) (*models.Profile, error) {
	const op = "dev.add_xp"
	if err := s.requireDevMode(ctx, op, userID); err != nil {
		return nil, err
	}
	if amount <= 0 || amount > maxDevXP {
		return nil, validationErr(op, "amount must be between 1 and %d", maxDevXP)
	}
	return s.Progression.AwardXP(ctx, userID, amount, models.XPEventDevGrant, "dev add xp")
}

// ForceLevelUp grants exactly the XP still missing for the next level.
func (s *DevService) ForceLevelUp(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "dev.level_up"
	if err := s.requireDevMode(ctx, op, userID); err != nil {
		return nil, err
	}
	prof, err := s.Progression.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := s.Settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	need := PoliciesFromSettings(*st).Curve.Required(prof.Level) - prof.XP
	if need < 1 {
		need = 1
	}
	return s.Progression.AwardXP(ctx, userID, need, models.XPEventDevGrant, "dev force level-up")
}

// Simulate completes a quest on each of the last seven days, oldest first.
// With an empty habitID the newest active quest is used.
func (s *DevService) Simulate(ctx context.Context, userID, habitID string) (*ToggleResult, error) {
	const op = "dev.simulate"
	if err := s.requireDevMode(ctx, op, userID); err != nil {
		return nil, err
	}
	if habitID == "" {
		habits, err := s.Habits.ListActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(habits) == 0 {
			return nil, notFoundErr(op, "no active quest to simulate")
		}
		habitID = habits[0].ID
	}

	today := utils.Today(s.Progression.now())
	var last *ToggleResult
	for i := simulateDays - 1; i >= 0; i-- {
		res, err := s.Progression.ToggleQuest(ctx, userID, ToggleRequest{
			HabitID:   habitID,
			Day:       utils.FormatDay(utils.AddDays(today, -i)),
			Completed: true,
		})
		if err != nil {
			return nil, err
		}
		last = res
	}
	return last, nil
}
