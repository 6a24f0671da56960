package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"quest-progression-system/logger"
	"quest-progression-system/models"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxGraceDays       = 7
	maxMultiplier      = 10.0
	maxMultiplierTiers = 12
	maxHunterNameLen   = 40
)

// Policies bundles the per-user engine configuration derived from Settings.
type Policies struct {
	Curve      LevelCurve
	Multiplier MultiplierPolicy
	Streak     StreakPolicy
}

// DefaultPolicies is what a user without a settings row gets.
var DefaultPolicies = PoliciesFromSettings(models.DefaultSettings(""))

// PoliciesFromSettings builds the level curve, multiplier and streak policies.
// Values that would break the curve fall back to the reference defaults.
func PoliciesFromSettings(s models.Settings) Policies {
	curve := LevelCurve{Base: s.XPBase, Step: s.XPPerLevel}
	if curve.Base <= 0 || curve.Step < 0 {
		curve = DefaultLevelCurve
	}
	return Policies{
		Curve:      curve,
		Multiplier: NewMultiplierPolicy(s.XPMultiplierEnabled, s.MultiplierTiers),
		Streak:     StreakPolicy{Mode: s.StreakMode, GraceDays: s.GraceDays},
	}
}

type SettingsService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db, Now: time.Now}
}

func (s *SettingsService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Get returns the user's settings, creating the default row on first access.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.Settings, error) {
	const op = "settings.get"
	def := models.DefaultSettings(userID)
	if err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&def).Error; err != nil {
		return nil, storeErr(op, err)
	}

	var out models.Settings
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&out).Error; err != nil {
		return nil, storeErr(op, err)
	}
	return &out, nil
}

// Save validates and upserts the user's settings. The stored profile is
// renormalised under the new level curve in the same transaction.
func (s *SettingsService) Save(ctx context.Context, userID string, in models.Settings) (*models.Settings, error) {
	const op = "settings.save"
	if err := NormalizeSettings(&in); err != nil {
		return nil, err
	}
	in.ID = ""
	in.UserID = userID

	var out models.Settings
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"hunter_name", "hunter_class", "mode",
				"xp_multiplier_enabled", "multiplier_tiers", "xp_base", "xp_per_level",
				"streak_mode", "grace_days",
				"theme", "glow", "animations", "sfx", "sfx_volume", "haptics",
				"dev_mode", "updated_at",
			}),
		}).Create(&in).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).First(&out).Error; err != nil {
			return err
		}
		return renormalizeProfile(tx, userID, PoliciesFromSettings(out).Curve, s.now())
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return &out, nil
}

// renormalizeProfile re-applies the curve to the stored level and xp so that
// xp stays below the current level's requirement after a curve change.
func renormalizeProfile(tx *gorm.DB, userID string, curve LevelCurve, now time.Time) error {
	prof, err := ensureProfileTx(tx, userID, true)
	if err != nil {
		return err
	}
	level, xp, rank := prof.Level, prof.XP, prof.Rank
	applyXP(prof, curve, 0, now)
	if prof.Level == level && prof.XP == xp && prof.Rank == rank {
		return nil
	}
	logger.Info("[Settings] Profile renormalised under new level curve",
		"user", userID, "level_before", level, "xp_before", xp, "level", prof.Level, "xp", prof.XP)
	return tx.Save(prof).Error
}

// NormalizeSettings trims text fields and rejects values the engine cannot honour.
func NormalizeSettings(in *models.Settings) error {
	const op = "settings.validate"

	in.HunterName = normalizeText(in.HunterName)
	if in.HunterName == "" {
		in.HunterName = "HUNTER"
	}
	if utf8.RuneCountInString(in.HunterName) > maxHunterNameLen {
		return validationErr(op, "hunter_name must be at most %d characters", maxHunterNameLen)
	}
	in.HunterClass = strings.ToUpper(strings.TrimSpace(in.HunterClass))
	in.Mode = strings.ToUpper(strings.TrimSpace(in.Mode))
	in.Theme = strings.ToUpper(strings.TrimSpace(in.Theme))
	in.Glow = strings.ToUpper(strings.TrimSpace(in.Glow))

	if in.XPBase < 1 || in.XPBase > 100000 {
		return validationErr(op, "xp_base must be between 1 and 100000")
	}
	if in.XPPerLevel < 0 || in.XPPerLevel > 100000 {
		return validationErr(op, "xp_per_level must be between 0 and 100000")
	}

	in.StreakMode = strings.ToLower(strings.TrimSpace(in.StreakMode))
	switch in.StreakMode {
	case models.StreakModeStrict, models.StreakModeGrace:
	default:
		return validationErr(op, "streak_mode must be %q or %q", models.StreakModeStrict, models.StreakModeGrace)
	}
	if in.GraceDays < 0 || in.GraceDays > maxGraceDays {
		return validationErr(op, "grace_days must be between 0 and %d", maxGraceDays)
	}

	if len(in.MultiplierTiers) == 0 {
		in.MultiplierTiers = models.DefaultMultiplierTiers()
	}
	if len(in.MultiplierTiers) > maxMultiplierTiers {
		return validationErr(op, "at most %d multiplier tiers are allowed", maxMultiplierTiers)
	}
	seen := make(map[int]bool, len(in.MultiplierTiers))
	for _, t := range in.MultiplierTiers {
		if t.Days < 1 {
			return validationErr(op, "multiplier tier days must be at least 1")
		}
		if seen[t.Days] {
			return validationErr(op, "duplicate multiplier tier for %d days", t.Days)
		}
		seen[t.Days] = true
		if t.Multiplier < 1 || t.Multiplier > maxMultiplier {
			return validationErr(op, "multiplier for %d days must be between 1 and %.0f", t.Days, maxMultiplier)
		}
	}

	if in.SFXVolume < 0 || in.SFXVolume > 1 {
		return validationErr(op, "sfx_volume must be between 0 and 1")
	}
	return nil
}

// loadSettings reads settings inside a transaction without creating them.
func loadSettings(tx *gorm.DB, userID string) (models.Settings, error) {
	var st models.Settings
	err := tx.Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(userID), nil
	}
	return st, err
}

// normalizeText applies NFC and collapses surrounding whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
