package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ExportSink stores an export archive and returns where it landed (URL or path).
type ExportSink interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

// ExportDump is the full state of one user.
type ExportDump struct {
	ExportedAt time.Time            `json:"exported_at"`
	Profile    *models.Profile      `json:"profile"`
	Settings   *models.Settings     `json:"settings"`
	Habits     []models.Habit       `json:"habits"`
	Logs       []models.HabitLog    `json:"logs"`
	Streaks    []models.StreakState `json:"streaks"`
}

// ArchiveResult describes a stored archive.
type ArchiveResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
}

type ExportService struct {
	DB   *gorm.DB
	Sink ExportSink
	Now  func() time.Time
}

func NewExportService(db *gorm.DB, sink ExportSink) *ExportService {
	return &ExportService{DB: db, Sink: sink, Now: time.Now}
}

func (s *ExportService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Dump reads every row the user owns in a single read transaction.
func (s *ExportService) Dump(ctx context.Context, userID string) (*ExportDump, error) {
	const op = "export.dump"
	dump := &ExportDump{
		ExportedAt: s.now().UTC(),
		Habits:     []models.Habit{},
		Logs:       []models.HabitLog{},
		Streaks:    []models.StreakState{},
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prof, err := ensureProfileTx(tx, userID, false)
		if err != nil {
			return err
		}
		dump.Profile = prof

		settings, err := loadSettings(tx, userID)
		if err != nil {
			return err
		}
		dump.Settings = &settings

		if err := tx.Where("user_id = ?", userID).Order("created_at ASC").Find(&dump.Habits).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Order("day ASC, habit_id ASC").Find(&dump.Logs).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Order("habit_id ASC").Find(&dump.Streaks).Error
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return dump, nil
}

// Archive dumps the user and stores the JSON through the configured sink.
func (s *ExportService) Archive(ctx context.Context, userID string) (*ArchiveResult, error) {
	const op = "export.archive"
	if s.Sink == nil {
		return nil, &Error{Kind: KindStoreUnavailable, Op: op, Msg: "export storage is not configured"}
	}

	dump, err := s.Dump(ctx, userID)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: marshal: %w", op, err)
	}

	key := archiveKey(dump.Settings.HunterName, userID, dump.ExportedAt)
	location, err := s.Sink.Put(ctx, key, body)
	if err != nil {
		return nil, &Error{Kind: KindStoreUnavailable, Op: op, Msg: "failed to store export", Err: err}
	}

	logger.Info("export archived", "user", userID, "key", key, "bytes", len(body))
	return &ArchiveResult{Key: key, Location: location, Bytes: len(body)}, nil
}

// ArchiveAll archives every user with a profile. Failures are logged and counted.
func (s *ExportService) ArchiveAll(ctx context.Context) (archived, failed int, err error) {
	var users []string
	if err := s.DB.WithContext(ctx).Model(&models.Profile{}).Order("user_id").Pluck("user_id", &users).Error; err != nil {
		return 0, 0, storeErr("export.archive_all", err)
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return archived, failed, ctx.Err()
		}
		if _, err := s.Archive(ctx, userID); err != nil {
			logger.Error("backup failed", "user", userID, "error", err)
			failed++
			continue
		}
		archived++
	}
	return archived, failed, nil
}

func archiveKey(hunterName, userID string, at time.Time) string {
	name := slug.Make(hunterName)
	if name == "" {
		name = "hunter"
	}
	return fmt.Sprintf("exports/%s-%s-%s.json", name, userID, at.UTC().Format("20060102T150405Z"))
}
