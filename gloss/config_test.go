package gloss

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloss.yaml")
	data := []byte(`
source: en
target: ja
blocklist: ["nav", "promo"]
tuning:
  visible_batch: 7
  min_text_len: 20
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tuning.VisibleBatch != 7 {
		t.Fatalf("visible_batch = %d, want 7", cfg.Tuning.VisibleBatch)
	}
	if cfg.Tuning.MinTextLen != 20 {
		t.Fatalf("min_text_len = %d, want 20", cfg.Tuning.MinTextLen)
	}
	// Unset fields fall back to defaults.
	if cfg.Tuning.BackgroundBatch != 3 || cfg.Tuning.DebounceWindow != 500*time.Millisecond {
		t.Fatalf("defaults not applied: %+v", cfg.Tuning)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
