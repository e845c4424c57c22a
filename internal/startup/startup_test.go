package startup

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.AutoplayDelay != 10*time.Second {
		t.Errorf("AutoplayDelay = %s, want 10s", cfg.AutoplayDelay)
	}
	if cfg.UpNextCount != 2 {
		t.Errorf("UpNextCount = %d, want 2", cfg.UpNextCount)
	}
	if cfg.PreviewFrames != 6 {
		t.Errorf("PreviewFrames = %d, want 6", cfg.PreviewFrames)
	}
	if cfg.DatabasePath == "" {
		t.Error("DatabasePath not derived")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("AUTOPLAY_DELAY", "5s")
	t.Setenv("UPNEXT_COUNT", "4")
	t.Setenv("VOLUME_STEP", "0.1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.AutoplayDelay != 5*time.Second {
		t.Errorf("AutoplayDelay = %s, want 5s", cfg.AutoplayDelay)
	}
	if cfg.UpNextCount != 4 {
		t.Errorf("UpNextCount = %d, want 4", cfg.UpNextCount)
	}
	if cfg.VolumeStep != 0.1 {
		t.Errorf("VolumeStep = %g, want 0.1", cfg.VolumeStep)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("AUTOPLAY_DELAY", "soon")
	t.Setenv("UPNEXT_COUNT", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// Invalid values fall back to the defaults rather than failing boot.
	if cfg.AutoplayDelay != 10*time.Second {
		t.Errorf("AutoplayDelay = %s, want default 10s", cfg.AutoplayDelay)
	}
	if cfg.UpNextCount != 2 {
		t.Errorf("UpNextCount = %d, want default 2", cfg.UpNextCount)
	}
}
