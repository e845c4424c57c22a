package catalog

import (
	"path"
	"strings"
	"time"
)

// Kind is the closed set of media kinds the engine understands.
type Kind string

const (
	// KindImage represents a still image.
	KindImage Kind = "image"
	// KindVideo represents a video clip.
	KindVideo Kind = "video"
)

// Item is a single catalog entry. Items are supplied by an external
// catalog source and are read-only to the engine.
type Item struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Src      string    `json:"src"`
	Duration float64   `json:"duration,omitempty"` // seconds, 0 = unknown
	Preview  []string  `json:"preview,omitempty"`  // explicit thumbnail handles
	Tags     []string  `json:"tags,omitempty"`     // author-supplied, distinct from user tags
	AddedAt  time.Time `json:"addedAt,omitempty"`  // zero = backfilled on first sight
}

// IsVideo reports whether the item is a video clip.
func (it Item) IsVideo() bool { return it.Kind == KindVideo }

// IsImage reports whether the item is a still image.
func (it Item) IsImage() bool { return it.Kind == KindImage }

// Stem returns the filename of the item's source without directory or
// extension, the basis for derived titles, auto-tag tokens and preview
// frame names.
func (it Item) Stem() string {
	base := path.Base(it.Src)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// Ext returns the lowercase extension of the item's source, including
// the leading dot. Empty if the source has no extension.
func (it Item) Ext() string {
	return strings.ToLower(path.Ext(it.Src))
}

// ImageExtensions maps file extensions to whether they are recognized
// still-image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are recognized
// motion formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// KindForExt returns the Kind implied by a lowercase file extension,
// or "" if the extension is not a recognized media format.
func KindForExt(ext string) Kind {
	if ImageExtensions[ext] {
		return KindImage
	}
	if VideoExtensions[ext] {
		return KindVideo
	}
	return ""
}
