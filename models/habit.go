package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Habit is a quest the user completes once per calendar day.
// Habits are never hard-deleted; IsActive=false hides them.
type Habit struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Title      string    `gorm:"type:varchar(120);not null" json:"title"`
	Difficulty int       `gorm:"not null;default:1" json:"difficulty"`
	XPReward   int64     `gorm:"not null" json:"xp_reward"` // base reward, fixed at creation
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClampDifficulty keeps a difficulty inside [MinDifficulty, MaxDifficulty].
func ClampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// RewardForDifficulty is the base XP of a quest: 8 + 6 per difficulty point.
func RewardForDifficulty(d int) int64 {
	return 8 + 6*int64(ClampDifficulty(d))
}

func (h *Habit) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
