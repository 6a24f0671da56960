package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StreakState is the per-habit streak, mutated only by the toggle transaction.
// BestStreak >= CurrentStreak at all times.
type StreakState struct {
	ID               string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string  `gorm:"type:varchar(64);index;not null" json:"user_id"`
	HabitID          string  `gorm:"type:varchar(36);uniqueIndex;not null" json:"habit_id"`
	CurrentStreak    int     `gorm:"not null;default:0" json:"current_streak"`
	BestStreak       int     `gorm:"not null;default:0" json:"best_streak"`
	LastCompletedDay *string `gorm:"type:varchar(10)" json:"last_completed_day"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *StreakState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
