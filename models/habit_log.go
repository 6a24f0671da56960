package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HabitLog is the ledger row for one (habit, day) pair.
// XPGain is the XP actually awarded (after multiplier) and is zero while not completed.
type HabitLog struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string  `gorm:"type:varchar(64);index:idx_habit_logs_user_day,priority:1;not null" json:"user_id"`
	HabitID   string  `gorm:"type:varchar(36);uniqueIndex:idx_habit_logs_habit_day,priority:1;not null" json:"habit_id"`
	Day       string  `gorm:"type:varchar(10);uniqueIndex:idx_habit_logs_habit_day,priority:2;index:idx_habit_logs_user_day,priority:2;not null" json:"day"` // YYYY-MM-DD
	Completed bool    `gorm:"not null;default:false" json:"completed"`
	XPBase    int64   `gorm:"not null;default:0" json:"xp_base"`
	XPMult    float64 `gorm:"not null" json:"xp_mult"`
	XPGain    int64   `gorm:"not null;default:0" json:"xp_gain"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (l *HabitLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
