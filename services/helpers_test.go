package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quest-progression-system/database"
	"quest-progression-system/models"
	"quest-progression-system/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// testNow is a Friday; every service under test shares this clock.
var testNow = time.Date(2026, time.March, 20, 15, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "quests.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// newTestRedis starts an in-process Redis server for the test.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type testEnv struct {
	db          *gorm.DB
	progression *ProgressionService
	habits      *HabitService
	settings    *SettingsService
	stats       *StatsService
	cache       *memoryStatsCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := func() time.Time { return testNow }
	cache := newMemoryStatsCache()

	progression := NewProgressionService(db, NewKeyedMutex(), cache)
	progression.Now = clock
	habits := NewHabitService(db)
	habits.Now = clock
	stats := NewStatsService(db, cache)
	stats.Now = clock

	return &testEnv{
		db:          db,
		progression: progression,
		habits:      habits,
		settings:    NewSettingsService(db),
		stats:       stats,
		cache:       cache,
	}
}

func (e *testEnv) createHabit(t *testing.T, userID, title string, difficulty int) *models.Habit {
	t.Helper()
	h, err := e.habits.Create(context.Background(), userID, CreateHabitInput{Title: title, Difficulty: difficulty})
	if err != nil {
		t.Fatalf("Create habit: %v", err)
	}
	return h
}

// toggle marks habitID on the day offset days from testNow.
func (e *testEnv) toggle(t *testing.T, userID, habitID string, offset int, completed bool) *ToggleResult {
	t.Helper()
	res, err := e.progression.ToggleQuest(context.Background(), userID, ToggleRequest{
		HabitID:   habitID,
		Day:       dayOffset(offset),
		Completed: completed,
	})
	if err != nil {
		t.Fatalf("ToggleQuest(day %+d, %v): %v", offset, completed, err)
	}
	return res
}

func (e *testEnv) profile(t *testing.T, userID string) models.Profile {
	t.Helper()
	var p models.Profile
	if err := e.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return p
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func dayOffset(offset int) string {
	return utils.FormatDay(utils.AddDays(utils.Today(testNow), offset))
}

// memoryStatsCache records invalidations so tests can observe them.
type memoryStatsCache struct {
	mu          sync.Mutex
	reports     map[string]*StatsReport
	invalidated map[string]int
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{reports: map[string]*StatsReport{}, invalidated: map[string]int{}}
}

func (m *memoryStatsCache) Get(_ context.Context, userID string) (*StatsReport, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[userID], int64(m.invalidated[userID]), nil
}

func (m *memoryStatsCache) Set(_ context.Context, userID string, gen int64, r *StatsReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(m.invalidated[userID]) == gen {
		m.reports[userID] = r
	}
	return nil
}

func (m *memoryStatsCache) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, userID)
	m.invalidated[userID]++
	return nil
}

func (m *memoryStatsCache) invalidations(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidated[userID]
}
