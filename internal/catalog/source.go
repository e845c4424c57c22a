package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Source enumerates the catalog. The engine consumes items and never
// mutates them; what media exists is someone else's decision.
type Source interface {
	Items(ctx context.Context) ([]Item, error)
}

// Resolver turns an opaque media or preview handle into a displayable
// URL. Implementations are expected to be total and side-effect free.
type Resolver interface {
	URL(handle string) string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(handle string) string

// URL implements Resolver.
func (f ResolverFunc) URL(handle string) string { return f(handle) }

// PrefixResolver resolves handles by joining them to a base URL.
type PrefixResolver struct {
	Base string
}

// URL implements Resolver.
func (p PrefixResolver) URL(handle string) string {
	if handle == "" {
		return ""
	}
	if strings.Contains(handle, "://") {
		return handle
	}
	return strings.TrimSuffix(p.Base, "/") + "/" + strings.TrimPrefix(handle, "/")
}

// ManifestSource reads the catalog from a JSON manifest file: an array
// of items, or an object with an "items" array. Items missing an id get
// one derived from the source handle; items missing a kind get one
// inferred from the source extension. Entries that are neither image
// nor video are dropped.
type ManifestSource struct {
	Path string

	mu     sync.Mutex
	items  []Item
	loaded time.Time
}

type manifest struct {
	Items []Item `json:"items"`
}

// NewManifestSource creates a Source backed by the manifest at path.
func NewManifestSource(path string) *ManifestSource {
	return &ManifestSource{Path: path}
}

// Items implements Source. The manifest is re-read when its mtime is
// newer than the last successful load.
func (m *ManifestSource) Items(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(m.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog manifest: %w", err)
	}
	if m.items != nil && !info.ModTime().After(m.loaded) {
		return m.items, nil
	}

	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog manifest: %w", err)
	}

	items, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog manifest: %w", err)
	}

	m.items = items
	m.loaded = info.ModTime()
	return items, nil
}

func parseManifest(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		var wrapped manifest
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, err
		}
		items = wrapped.Items
	}

	out := make([]Item, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Src == "" {
			continue
		}
		if it.ID == "" {
			it.ID = it.Src
		}
		if it.Kind == "" {
			it.Kind = KindForExt(it.Ext())
		}
		if it.Kind != KindImage && it.Kind != KindVideo {
			continue
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out, nil
}

// StaticSource is a fixed in-memory Source, used in tests and by
// embedding callers that already hold the item list.
type StaticSource []Item

// Items implements Source.
func (s StaticSource) Items(_ context.Context) ([]Item, error) {
	return []Item(s), nil
}

// IDs returns the ids of items in order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Index builds an id lookup for a slice of items.
func Index(items []Item) map[string]Item {
	idx := make(map[string]Item, len(items))
	for _, it := range items {
		idx[it.ID] = it
	}
	return idx
}

// SortByAdded orders items newest first by added date, falling back to
// id order for equal or missing dates so the ordering is stable.
func SortByAdded(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].AddedAt, out[j].AddedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
