package tle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheWriteAndLoadLatest(t *testing.T) {
	c := NewCache(t.TempDir(), 3)

	base := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		data := []byte{byte('a' + i)}
		if err := c.Write(data, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	data, ts, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if string(data) != "e" {
		t.Errorf("latest data = %q, want %q", data, "e")
	}
	if !ts.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("latest ts = %v, want %v", ts, base.Add(4*time.Hour))
	}

	files, err := c.listFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Errorf("kept %d files, want 3", len(files))
	}
}

func TestCacheIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 5)

	for _, name := range []string{"notes.txt", "tle_abc.txt", ".tle-partial"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := c.LoadLatest(); !errors.Is(err, ErrNoCache) {
		t.Fatalf("LoadLatest error = %v, want ErrNoCache", err)
	}
}

func TestCacheMissingDir(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "does", "not", "exist"), 0)
	if _, _, err := c.LoadLatest(); !errors.Is(err, ErrNoCache) {
		t.Fatalf("LoadLatest error = %v, want ErrNoCache", err)
	}
}
