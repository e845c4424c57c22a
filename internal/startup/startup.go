// Package startup loads and validates the engine's configuration from
// environment variables and logs the resolved values at boot.
package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gallery-engine/internal/logging"
)

// Build-time variables (injected via -ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all engine configuration.
type Config struct {
	DatabaseDir     string
	CatalogManifest string
	MediaBaseURL    string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	// Viewer tuning. The autoplay delay and up-next count are
	// configuration on purpose, not inferred business rules.
	AutoplayDelay     time.Duration
	UpNextCount       int
	SeekStep          float64
	VolumeStep        float64
	PersistInterval   time.Duration
	ProgressThreshold float64
	SwipeMinDistance  float64

	// Grid tuning.
	HoverDelay    time.Duration
	HoverInterval time.Duration
	PreviewFrames int

	// Derived paths.
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment
// variables, logging every resolved value.
func LoadConfig() (*Config, error) {
	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		DatabaseDir:       getEnv("DATABASE_DIR", "/database"),
		CatalogManifest:   getEnv("CATALOG_MANIFEST", "/media/catalog.json"),
		MediaBaseURL:      getEnv("MEDIA_BASE_URL", "/media"),
		Port:              getEnv("PORT", "8080"),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:   getEnvBool("LOG_HEALTH_CHECKS", false),
		AutoplayDelay:     getEnvDuration("AUTOPLAY_DELAY", 10*time.Second),
		UpNextCount:       getEnvInt("UPNEXT_COUNT", 2),
		SeekStep:          getEnvFloat("SEEK_STEP_SECONDS", 10),
		VolumeStep:        getEnvFloat("VOLUME_STEP", 0.05),
		PersistInterval:   getEnvDuration("PROGRESS_PERSIST_INTERVAL", 2*time.Second),
		ProgressThreshold: getEnvFloat("PROGRESS_PERSIST_THRESHOLD", 1),
		SwipeMinDistance:  getEnvFloat("SWIPE_MIN_DISTANCE", 60),
		HoverDelay:        getEnvDuration("HOVER_DELAY", 400*time.Millisecond),
		HoverInterval:     getEnvDuration("HOVER_INTERVAL", 800*time.Millisecond),
		PreviewFrames:     getEnvInt("PREVIEW_FRAMES", 6),
	}

	logging.Info("  DATABASE_DIR:              %s", cfg.DatabaseDir)
	logging.Info("  CATALOG_MANIFEST:          %s", cfg.CatalogManifest)
	logging.Info("  MEDIA_BASE_URL:            %s", cfg.MediaBaseURL)
	logging.Info("  PORT:                      %s", cfg.Port)
	logging.Info("  METRICS_PORT:              %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:           %v", cfg.MetricsEnabled)
	logging.Info("  AUTOPLAY_DELAY:            %s", cfg.AutoplayDelay)
	logging.Info("  UPNEXT_COUNT:              %d", cfg.UpNextCount)
	logging.Info("  SEEK_STEP_SECONDS:         %.1f", cfg.SeekStep)
	logging.Info("  VOLUME_STEP:               %.2f", cfg.VolumeStep)
	logging.Info("  PROGRESS_PERSIST_INTERVAL: %s", cfg.PersistInterval)
	logging.Info("  HOVER_DELAY:               %s", cfg.HoverDelay)
	logging.Info("  HOVER_INTERVAL:            %s", cfg.HoverInterval)
	logging.Info("  PREVIEW_FRAMES:            %d", cfg.PreviewFrames)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())

	dbDir, err := filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabaseDir = dbDir

	if err := ensureDirectory(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory not usable: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "engagement.db")

	return cfg, nil
}

func printBanner() {
	logging.Printf("============================================================")
	logging.Printf(" gallery-engine %s (%s)", Version, Commit)
	logging.Printf(" built %s with %s", BuildTime, GoVersion)
	logging.Printf("============================================================")
}

// ensureDirectory creates the directory if missing and verifies it is
// writable.
func ensureDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("%s not writable: %w", dir, err)
	}
	_ = os.Remove(testFile)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("  Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logging.Warn("  Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logging.Warn("  Invalid %s=%q, using default %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logging.Warn("  Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
