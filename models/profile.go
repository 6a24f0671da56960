package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Default progression values for a freshly created hunter profile.
const (
	DefaultLevel = 1
	DefaultXP    = 0
	DefaultRank  = "E"
)

// Profile tracks gamified progression for each user (one row per user, never deleted).
// XP is the progress inside the current level, always below the level's threshold.
type Profile struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"` // identity supplied by the gateway

	// Core progression
	Level int    `json:"level" gorm:"not null;default:1"`
	XP    int64  `json:"xp" gorm:"not null;default:0"`
	Rank  string `json:"rank" gorm:"type:varchar(2);not null;default:'E'"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	Timestamps
}

// NewProfile returns the default profile for a user.
func NewProfile(userID string) Profile {
	return Profile{
		ID:     uuid.NewString(),
		UserID: userID,
		Level:  DefaultLevel,
		XP:     DefaultXP,
		Rank:   DefaultRank,
	}
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
