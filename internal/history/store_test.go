// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     history
// Description: Recording store tests
// License:     MIT
// ============================================================================

package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewSQLiteStore(Config{
		Path:    filepath.Join(dir, "history.db"),
		ClipDir: filepath.Join(dir, "recordings"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetRecording(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &Recording{
		ID:        uuid.NewString(),
		Mode:      "dictation",
		Provider:  "cloud",
		Text:      "hello world",
		Status:    StatusSuccess,
		Duration:  1500 * time.Millisecond,
		WordCount: 2,
	}
	if err := store.SaveRecording(ctx, rec); err != nil {
		t.Fatalf("SaveRecording failed: %v", err)
	}

	got, err := store.GetRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want %q", got.Text, "hello world")
	}
	if got.WordCount != 2 {
		t.Errorf("WordCount = %d, want 2", got.WordCount)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got.Duration)
	}
	if got.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", got.Status, StatusSuccess)
	}
}

func TestSaveRecordingRequiresID(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveRecording(context.Background(), &Recording{Status: StatusFailed}); err == nil {
		t.Error("SaveRecording without ID expected error")
	}
}

func TestListRecordingsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := &Recording{
			ID:        uuid.NewString(),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Text:      []string{"first", "second", "third"}[i],
			Status:    StatusSuccess,
		}
		if err := store.SaveRecording(ctx, rec); err != nil {
			t.Fatalf("SaveRecording %d failed: %v", i, err)
		}
	}

	recs, err := store.ListRecordings(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecordings failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Text != "third" || recs[1].Text != "second" {
		t.Errorf("order = [%q, %q], want [third, second]", recs[0].Text, recs[1].Text)
	}
}

func TestGetRecordingNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetRecording(context.Background(), "missing"); err == nil {
		t.Error("GetRecording(missing) expected error")
	}
}

func TestArchiveClip(t *testing.T) {
	store := newTestStore(t)

	tmp := filepath.Join(t.TempDir(), "voxkey-123.wav")
	if err := os.WriteFile(tmp, []byte("RIFFdata"), 0o600); err != nil {
		t.Fatalf("write temp clip failed: %v", err)
	}

	archived, err := store.ArchiveClip(tmp)
	if err != nil {
		t.Fatalf("ArchiveClip failed: %v", err)
	}

	if filepath.Dir(archived) != store.clipDir {
		t.Errorf("archived dir = %q, want %q", filepath.Dir(archived), store.clipDir)
	}
	data, err := os.ReadFile(archived)
	if err != nil {
		t.Fatalf("read archived clip failed: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Errorf("archived content = %q, want RIFFdata", data)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp clip still exists after archive")
	}
}

func TestWordCountAccounting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	total, err := store.TotalWords(ctx)
	if err != nil {
		t.Fatalf("TotalWords failed: %v", err)
	}
	if total != 0 {
		t.Errorf("initial total = %d, want 0", total)
	}

	if err := store.AddWords(ctx, 5); err != nil {
		t.Fatalf("AddWords failed: %v", err)
	}
	if err := store.AddWords(ctx, 3); err != nil {
		t.Fatalf("AddWords failed: %v", err)
	}

	total, err = store.TotalWords(ctx)
	if err != nil {
		t.Fatalf("TotalWords failed: %v", err)
	}
	if total != 8 {
		t.Errorf("total = %d, want 8", total)
	}
}
