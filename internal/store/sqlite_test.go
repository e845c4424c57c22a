package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// setupTestStore creates a fresh SQLite store backed by a temporary
// database file.
func setupTestStore(t *testing.T) *SQLite {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "engagement.db")
	s, err := NewSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})
	return s
}

func TestSQLiteWatchTimeAccumulates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	if _, err := s.AddWatchTime(ctx, "v1", 12.5); err != nil {
		t.Fatalf("AddWatchTime failed: %v", err)
	}
	total, err := s.AddWatchTime(ctx, "v1", 7.5)
	if err != nil {
		t.Fatalf("AddWatchTime failed: %v", err)
	}
	if total != 20 {
		t.Errorf("total = %g, want 20", total)
	}

	all := s.AllWatchSeconds(ctx)
	if all["v1"] != 20 {
		t.Errorf("AllWatchSeconds[v1] = %g, want 20", all["v1"])
	}

	if err := s.ResetAllWatchTime(ctx); err != nil {
		t.Fatalf("ResetAllWatchTime failed: %v", err)
	}
	if got := s.WatchSeconds(ctx, "v1"); got != 0 {
		t.Errorf("WatchSeconds after reset = %g, want 0", got)
	}
}

func TestSQLiteProgressClamped(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	saved, err := s.SetProgress(ctx, "v1", 150, 120)
	if err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if saved != 120 {
		t.Errorf("SetProgress(150, 120) = %g, want 120", saved)
	}

	if _, err := s.SetProgress(ctx, "v1", -10, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if got := s.Progress(ctx, "v1"); got != 0 {
		t.Errorf("Progress = %g, want 0", got)
	}

	if _, err := s.SetProgress(ctx, "v1", 45, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if err := s.ClearProgress(ctx, "v1"); err != nil {
		t.Fatalf("ClearProgress failed: %v", err)
	}
	if got := s.Progress(ctx, "v1"); got != 0 {
		t.Errorf("Progress after clear = %g, want 0", got)
	}
}

func TestSQLiteFavoriteToggle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	on, err := s.ToggleFavorite(ctx, "p1")
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if !on || !s.IsFavorite(ctx, "p1") {
		t.Error("item should be favorited after first toggle")
	}

	on, err = s.ToggleFavorite(ctx, "p1")
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if on || s.IsFavorite(ctx, "p1") {
		t.Error("item should not be favorited after second toggle")
	}
}

func TestSQLiteTagsRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	saved, err := s.SetTags(ctx, "p1", []string{"Beach", " sunset ", "beach"})
	if err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}
	want := []string{"beach", "sunset"}
	if !reflect.DeepEqual(saved, want) {
		t.Errorf("SetTags = %v, want %v", saved, want)
	}
	if got := s.Tags(ctx, "p1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags = %v, want %v", got, want)
	}

	// Replacement semantics: the old set is gone.
	if _, err := s.SetTags(ctx, "p1", []string{"city"}); err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}
	if got := s.Tags(ctx, "p1"); !reflect.DeepEqual(got, []string{"city"}) {
		t.Errorf("Tags after replace = %v, want [city]", got)
	}
}

func TestSQLiteAllTagsIncludesDerived(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	if _, err := s.SetTags(ctx, "p1", []string{"holiday"}); err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}
	meta := AutoTagMeta{Version: 3, Tags: []string{"video", "landscape"}}
	if err := s.SetAutoTagMeta(ctx, "v1", meta); err != nil {
		t.Fatalf("SetAutoTagMeta failed: %v", err)
	}

	got := s.AllTags(ctx)
	want := []string{"holiday", "landscape", "video"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllTags = %v, want %v", got, want)
	}
}

func TestSQLiteAutoTagMetaCorruptReadsAsAbsent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	meta := AutoTagMeta{Version: 3, Tags: []string{"video"}}
	if err := s.SetAutoTagMeta(ctx, "v1", meta); err != nil {
		t.Fatalf("SetAutoTagMeta failed: %v", err)
	}
	if got, ok := s.AutoTagMeta(ctx, "v1"); !ok || got.Version != 3 {
		t.Fatalf("AutoTagMeta = %+v, %v; want version 3, true", got, ok)
	}

	// Corrupt the cached entry behind the store's back.
	if _, err := s.db.Exec("UPDATE auto_tags SET tags = 'not json' WHERE item_id = ?", "v1"); err != nil {
		t.Fatalf("failed to corrupt auto_tags row: %v", err)
	}

	if _, ok := s.AutoTagMeta(ctx, "v1"); ok {
		t.Error("corrupt auto_tags entry should read as absent")
	}
}

func TestSQLiteTitleOverride(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	if err := s.SetTitle(ctx, "p1", "  Summer Trip  "); err != nil {
		t.Fatalf("SetTitle failed: %v", err)
	}
	if got := s.Title(ctx, "p1"); got != "Summer Trip" {
		t.Errorf("Title = %q, want %q", got, "Summer Trip")
	}

	// Empty title clears the override.
	if err := s.SetTitle(ctx, "p1", "   "); err != nil {
		t.Fatalf("SetTitle failed: %v", err)
	}
	if got := s.Title(ctx, "p1"); got != "" {
		t.Errorf("Title after clear = %q, want empty", got)
	}
}

func TestSQLiteBackfillAddedOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	first := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	if err := s.BackfillAdded(ctx, "p1", first); err != nil {
		t.Fatalf("BackfillAdded failed: %v", err)
	}
	// A second backfill must not overwrite the original date.
	if err := s.BackfillAdded(ctx, "p1", first.Add(48*time.Hour)); err != nil {
		t.Fatalf("BackfillAdded failed: %v", err)
	}

	got, ok := s.AddedAt(ctx, "p1")
	if !ok {
		t.Fatal("AddedAt returned no date")
	}
	if !got.Equal(first) {
		t.Errorf("AddedAt = %v, want %v", got, first)
	}
}

func TestSQLiteVolumePersists(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(t)

	if got := s.Volume(ctx); got != 1 {
		t.Errorf("default volume = %g, want 1", got)
	}

	if _, err := s.SetVolume(ctx, 0.35); err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	if got := s.Volume(ctx); got != 0.35 {
		t.Errorf("Volume = %g, want 0.35", got)
	}
}
