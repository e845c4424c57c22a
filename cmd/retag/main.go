package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gallery-engine/internal/autotag"
	"gallery-engine/internal/catalog"
	"gallery-engine/internal/store"
)

const (
	defaultDatabaseDir = "/database"
	defaultManifest    = "/media/catalog.json"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "engagement.db")

	st, err := store.NewSQLite(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open engagement store: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
	}()

	switch command {
	case "run":
		if !runPass(ctx, st) {
			os.Exit(1)
		}
	case "status":
		showStatus(ctx, st)
	default:
		fmt.Fprintln(os.Stderr, "Unknown command")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Gallery Engine Auto-Tag Maintenance")
	fmt.Println("")
	fmt.Println("Usage: retag <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run     - Recompute cached auto tags for stale items")
	fmt.Println("  status  - Show cached auto-tag coverage for the catalog")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR     - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Printf("  CATALOG_MANIFEST - Path to catalog manifest (default: %s)\n", defaultManifest)
}

func loadItems(ctx context.Context) ([]catalog.Item, bool) {
	manifest := os.Getenv("CATALOG_MANIFEST")
	if manifest == "" {
		manifest = defaultManifest
	}

	items, err := catalog.NewManifestSource(manifest).Items(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load catalog: %v\n", err)
		return nil, false
	}
	return items, true
}

func runPass(ctx context.Context, st store.Store) bool {
	items, ok := loadItems(ctx)
	if !ok {
		return false
	}

	fmt.Printf("Retagging %d items (deriver version %d)...\n", len(items), autotag.Version)
	stats, err := autotag.RetagAll(ctx, st, items)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Pass interrupted: %v\n", err)
		return false
	}

	fmt.Printf("Done in %s: %d retagged, %d already current, %d failed\n",
		stats.Duration.Round(time.Millisecond), stats.Retagged, stats.Skipped, stats.Failed)
	return stats.Failed == 0
}

func showStatus(ctx context.Context, st store.Store) {
	items, ok := loadItems(ctx)
	if !ok {
		return
	}

	var current, stale, missing int
	for _, item := range items {
		meta, ok := st.AutoTagMeta(ctx, item.ID)
		switch {
		case !ok:
			missing++
		case meta.Version == autotag.Version:
			current++
		default:
			stale++
		}
	}

	fmt.Printf("Catalog items:     %d\n", len(items))
	fmt.Printf("Deriver version:   %d\n", autotag.Version)
	fmt.Printf("Cached (current):  %d\n", current)
	fmt.Printf("Cached (stale):    %d\n", stale)
	fmt.Printf("Never tagged:      %d\n", missing)
}
