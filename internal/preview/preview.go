// Package preview resolves the ordered list of thumbnail frame URLs
// for a video item. Frames are never generated here; the resolver only
// names pre-existing thumbnails, either from the item's explicit
// preview list or by a derived naming convention.
package preview

import (
	"fmt"
	"path"
	"strings"

	"gallery-engine/internal/catalog"
)

// DefaultFrameCount is the number of derived candidate frames when the
// item carries no explicit preview list.
const DefaultFrameCount = 6

// frameSuffix is the naming convention for derived frames:
// <stem>_preview_NN.jpg alongside the source.
const frameSuffix = "_preview_%02d.jpg"

// Resolver turns a video item into an ordered, deduplicated list of
// displayable thumbnail URLs.
type Resolver struct {
	urls catalog.Resolver
}

// New creates a preview resolver that maps handles to URLs through r.
func New(r catalog.Resolver) *Resolver {
	return &Resolver{urls: r}
}

// Resolve returns candidate frame URLs for a video item, ordered and
// deduplicated. Non-video items resolve to nothing. Each returned URL
// is a candidate only: callers must treat individual load failures as
// independent, degrading to fewer frames. An empty result means "no
// preview available, use a static placeholder".
func (r *Resolver) Resolve(item catalog.Item, frameCount int) []string {
	if !item.IsVideo() {
		return nil
	}
	if frameCount <= 0 {
		frameCount = DefaultFrameCount
	}

	var handles []string
	if len(item.Preview) > 0 {
		handles = item.Preview
	} else {
		handles = derivedFrames(item.Src, frameCount)
	}

	out := make([]string, 0, len(handles))
	seen := make(map[string]bool, len(handles))
	for _, h := range handles {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		url := r.urls.URL(h)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}

// derivedFrames names frameCount candidate thumbnails next to the
// source file using the fixed suffix convention.
func derivedFrames(src string, frameCount int) []string {
	ext := path.Ext(src)
	stem := strings.TrimSuffix(src, ext)

	frames := make([]string, 0, frameCount)
	for i := 1; i <= frameCount; i++ {
		frames = append(frames, stem+fmt.Sprintf(frameSuffix, i))
	}
	return frames
}
