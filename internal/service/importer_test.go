package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ride-analytics/internal/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.fit"), "x")
	writeFile(t, filepath.Join(dir, "nested", "a.FIT"), "x")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	single := filepath.Join(t.TempDir(), "single.bin")
	writeFile(t, single, "x")

	files, err := CollectFiles([]string{dir, single})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "b.fit"),
		filepath.Join(dir, "nested", "a.FIT"),
		single,
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	got := map[string]bool{}
	for _, f := range files {
		got[f] = true
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing %s in %v", w, files)
		}
	}
}

func TestCollectFilesMissingPath(t *testing.T) {
	if _, err := CollectFiles([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected error for a missing path")
	}
}

func TestImportFilesSkipsBadFiles(t *testing.T) {
	db := store.NewTestDB(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "corrupt.fit")
	writeFile(t, bad, "not a fit file")

	svc := NewImportService(db, 250, zerolog.Nop())
	progress := make(chan ImportProgress, 10)

	result, err := svc.ImportFiles(context.Background(), []string{bad}, progress)
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}
	if result.FilesFound != 1 || result.Skipped != 1 || result.SessionsStored != 0 {
		t.Errorf("result = %+v, want 1 found, 1 skipped", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want 1", result.Errors)
	}

	var updates []ImportProgress
	for p := range progress {
		updates = append(updates, p)
	}
	if len(updates) != 2 || updates[len(updates)-1].Completed != 1 {
		t.Errorf("progress = %+v, want start and final updates", updates)
	}

	// Nothing stored, so the import time is left alone
	last, err := db.GetSyncState(context.Background(), store.StateLastImport)
	if err != nil {
		t.Fatal(err)
	}
	if last != "" {
		t.Errorf("last import = %q, want empty", last)
	}
}

func TestImportFilesCancelled(t *testing.T) {
	db := store.NewTestDB(t)
	svc := NewImportService(db, 250, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.ImportFiles(ctx, []string{"a.fit", "b.fit"}, nil)
	if err != context.Canceled {
		t.Errorf("ImportFiles() error = %v, want context.Canceled", err)
	}
	if result.SessionsStored != 0 {
		t.Errorf("SessionsStored = %d, want 0", result.SessionsStored)
	}
}
