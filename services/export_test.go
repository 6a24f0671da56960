package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"quest-progression-system/utils"
)

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("bucket unreachable")
}

func TestExportDump(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h := env.createHabit(t, alice, "Export me", 2)
	env.toggle(t, alice, h.ID, -1, true)
	env.toggle(t, alice, h.ID, 0, true)
	env.createHabit(t, "user-bob", "Not mine", 1)

	svc := NewExportService(env.db, nil)
	svc.Now = func() time.Time { return testNow }

	dump, err := svc.Dump(ctx, alice)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !dump.ExportedAt.Equal(testNow) {
		t.Errorf("exported_at = %v", dump.ExportedAt)
	}
	if dump.Profile == nil || dump.Profile.XP != 40 {
		t.Errorf("profile = %+v", dump.Profile)
	}
	if dump.Settings == nil || dump.Settings.HunterName != "HUNTER" {
		t.Errorf("settings = %+v", dump.Settings)
	}
	if len(dump.Habits) != 1 || len(dump.Logs) != 2 || len(dump.Streaks) != 1 {
		t.Errorf("dump sizes = habits %d logs %d streaks %d", len(dump.Habits), len(dump.Logs), len(dump.Streaks))
	}
	if dump.Logs[0].Day > dump.Logs[1].Day {
		t.Error("logs not ordered by day")
	}

	body, err := json.Marshal(dump)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"exported_at"`, `"profile"`, `"habits"`, `"logs"`, `"streaks"`, `"settings"`} {
		if !strings.Contains(string(body), key) {
			t.Errorf("export JSON missing %s", key)
		}
	}
}

func TestExportArchiveLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, _ := env.settings.Get(ctx, alice)
	st.HunterName = "Shadow Monarch"
	if _, err := env.settings.Save(ctx, alice, *st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	svc := NewExportService(env.db, utils.NewLocalSink(t.TempDir()))
	svc.Now = func() time.Time { return testNow }

	res, err := svc.Archive(ctx, alice)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	wantKey := "exports/shadow-monarch-" + alice + "-20260320T153000Z.json"
	if res.Key != wantKey {
		t.Errorf("key = %s, want %s", res.Key, wantKey)
	}

	data, err := os.ReadFile(res.Location)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(data) != res.Bytes {
		t.Errorf("archive size = %d, reported %d", len(data), res.Bytes)
	}
	var dump ExportDump
	if err := json.Unmarshal(data, &dump); err != nil {
		t.Fatalf("archive is not valid JSON: %v", err)
	}
	if dump.Settings.HunterName != "Shadow Monarch" {
		t.Errorf("archived settings = %+v", dump.Settings)
	}
}

func TestExportArchiveErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := NewExportService(env.db, nil).Archive(ctx, alice); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("no sink err = %v, want store unavailable", err)
	}
	if _, err := NewExportService(env.db, failingSink{}).Archive(ctx, alice); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("failing sink err = %v, want store unavailable", err)
	}
}

func TestExportArchiveAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, u := range []string{"user-a", "user-b", "user-c"} {
		if _, err := env.progression.EnsureProfile(ctx, u); err != nil {
			t.Fatalf("EnsureProfile: %v", err)
		}
	}

	dir := t.TempDir()
	archived, failed, err := NewExportService(env.db, utils.NewLocalSink(dir)).ArchiveAll(ctx)
	if err != nil {
		t.Fatalf("ArchiveAll: %v", err)
	}
	if archived != 3 || failed != 0 {
		t.Errorf("archived %d failed %d, want 3 and 0", archived, failed)
	}

	archived, failed, err = NewExportService(env.db, failingSink{}).ArchiveAll(ctx)
	if err != nil {
		t.Fatalf("ArchiveAll: %v", err)
	}
	if archived != 0 || failed != 3 {
		t.Errorf("with failing sink archived %d failed %d, want 0 and 3", archived, failed)
	}
}

func TestArchiveKeyFallsBack(t *testing.T) {
	key := archiveKey("!!!", "u1", testNow)
	if !strings.HasPrefix(key, "exports/hunter-u1-") {
		t.Errorf("key = %s", key)
	}
}
