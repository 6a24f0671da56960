package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// XPEventKind labels why a profile's XP moved.
type XPEventKind string

const (
	XPEventQuestCompleted XPEventKind = "quest_completed"
	XPEventQuestReverted  XPEventKind = "quest_reverted"
	XPEventDevGrant       XPEventKind = "dev_grant"
	XPEventAdminGrant     XPEventKind = "admin_grant"
)

// XPEvent is an append-only audit row written in the same transaction as the profile change.
type XPEvent struct {
	ID          string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string            `gorm:"type:varchar(64);index:idx_xp_events_user_created,priority:1;not null" json:"user_id"`
	HabitID     *string           `gorm:"type:varchar(36);index" json:"habit_id,omitempty"`
	Day         *string           `gorm:"type:varchar(10)" json:"day,omitempty"`
	Kind        XPEventKind       `gorm:"type:varchar(20);not null" json:"kind"`
	Delta       int64             `gorm:"not null" json:"delta"`
	LevelBefore int               `gorm:"not null" json:"level_before"`
	LevelAfter  int               `gorm:"not null" json:"level_after"`
	XPAfter     int64             `gorm:"not null" json:"xp_after"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index:idx_xp_events_user_created,priority:2" json:"created_at"`
}

func (e *XPEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
