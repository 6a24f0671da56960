package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StreakModeStrict = "strict"
	StreakModeGrace  = "grace"
)

// MultiplierTier grants Multiplier once a streak reaches Days.
type MultiplierTier struct {
	Days       int     `json:"days"`
	Multiplier float64 `json:"multiplier"`
}

// DefaultMultiplierTiers are the reference streak bonus tiers.
func DefaultMultiplierTiers() []MultiplierTier {
	return []MultiplierTier{
		{Days: 3, Multiplier: 1.05},
		{Days: 7, Multiplier: 1.10},
		{Days: 14, Multiplier: 1.20},
		{Days: 30, Multiplier: 1.35},
	}
}

// Settings is the per-user configuration read by the progression engine on every toggle.
// Presentation fields are stored as-is for the client.
type Settings struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"-"`
	UserID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`

	// Identity
	HunterName  string `gorm:"type:varchar(40);not null" json:"hunter_name"`
	HunterClass string `gorm:"type:varchar(20);not null" json:"hunter_class"`
	Mode        string `gorm:"type:varchar(20);not null" json:"mode"`

	// Progression
	XPMultiplierEnabled bool                                `gorm:"not null" json:"xp_multiplier_enabled"`
	MultiplierTiers     datatypes.JSONSlice[MultiplierTier] `json:"multiplier_tiers"`
	XPBase              int64                               `gorm:"not null" json:"xp_base"`
	XPPerLevel          int64                               `gorm:"not null" json:"xp_per_level"`
	StreakMode          string                              `gorm:"type:varchar(10);not null" json:"streak_mode"`
	GraceDays           int                                 `gorm:"not null" json:"grace_days"`

	// Immersion
	Theme      string  `gorm:"type:varchar(20);not null" json:"theme"`
	Glow       string  `gorm:"type:varchar(10);not null" json:"glow"`
	Animations bool    `gorm:"not null" json:"animations"`
	SFX        bool    `gorm:"not null" json:"sfx"`
	SFXVolume  float64 `gorm:"not null" json:"sfx_volume"`
	Haptics    bool    `gorm:"not null" json:"haptics"`

	DevMode bool `gorm:"not null" json:"dev_mode"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DefaultSettings returns the settings a user starts with.
// Fields carry no gorm default tags so false and zero values survive inserts.
func DefaultSettings(userID string) Settings {
	return Settings{
		ID:                  uuid.NewString(),
		UserID:              userID,
		HunterName:          "HUNTER",
		HunterClass:         "FIGHTER",
		Mode:                "NORMAL",
		XPMultiplierEnabled: true,
		MultiplierTiers:     DefaultMultiplierTiers(),
		XPBase:              100,
		XPPerLevel:          25,
		StreakMode:          StreakModeStrict,
		GraceDays:           1,
		Theme:               "SHADOW_BLUE",
		Glow:                "MED",
		Animations:          true,
		SFX:                 true,
		SFXVolume:           0.6,
		Haptics:             true,
		DevMode:             false,
	}
}

func (s *Settings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
