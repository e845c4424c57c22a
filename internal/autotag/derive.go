// Package autotag derives candidate tags for catalog items from
// filename, keyword and extension heuristics. Derivation is pure and
// versioned: results are cached in the engagement store stamped with
// Version, and a catalog-wide pass only recomputes items whose cached
// version is stale.
package autotag

import (
	"sort"
	"strings"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/store"
)

// Version is the current deriver version. Bump it whenever the keyword
// table or matching rules change so cached results are recomputed.
const Version = 3

// Result is the outcome of deriving tags for one item.
type Result struct {
	Tags            []string `json:"tags"`
	MatchedKeywords []string `json:"matchedKeywords"`
}

// keywordTable maps a tag to the keywords that imply it. A keyword
// matches when it is a substring of any filename token or of the full
// lowercase path.
var keywordTable = []struct {
	tag      string
	keywords []string
}{
	{"landscape", []string{"sunset", "sunrise", "beach", "mountain", "lake", "ocean", "forest", "desert", "waterfall", "valley"}},
	{"people", []string{"portrait", "selfie", "family", "friends", "wedding", "group"}},
	{"pets", []string{"cat", "dog", "puppy", "kitten", "pet"}},
	{"city", []string{"city", "street", "urban", "skyline", "downtown"}},
	{"travel", []string{"travel", "trip", "vacation", "holiday", "tour"}},
	{"food", []string{"food", "dinner", "lunch", "breakfast", "recipe", "restaurant"}},
	{"nature", []string{"flower", "garden", "tree", "wildlife", "park"}},
	{"night", []string{"night", "moon", "stars", "fireworks"}},
	{"party", []string{"party", "birthday", "celebration", "concert", "festival"}},
	{"sports", []string{"match", "race", "workout", "gym", "soccer", "football"}},
	{"screenshot", []string{"screenshot", "screen_shot", "screencap"}},
	{"winter", []string{"snow", "winter", "ski", "ice"}},
	{"summer", []string{"summer", "pool", "surf"}},
}

// formatTag maps a file extension to a coarse format tag.
func formatTag(ext string) string {
	switch catalog.KindForExt(ext) {
	case catalog.KindImage:
		return "photo"
	case catalog.KindVideo:
		return "video"
	default:
		return ""
	}
}

// Derive computes the candidate tag set for an item. It is pure: the
// same item always yields the same result for a given Version.
func Derive(item catalog.Item) Result {
	haystack := strings.ToLower(item.Src)
	tokens := tokenize(item.Stem())
	tokens = append(tokens, string(item.Kind))

	tagSet := make(map[string]bool)
	matchedSet := make(map[string]bool)

	for _, entry := range keywordTable {
		for _, kw := range entry.keywords {
			if matches(kw, tokens, haystack) {
				tagSet[entry.tag] = true
				matchedSet[kw] = true
			}
		}
	}

	if ft := formatTag(item.Ext()); ft != "" {
		tagSet[ft] = true
	}
	// The item's own media kind is always a tag.
	tagSet[string(item.Kind)] = true

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	tags = store.NormalizeTags(tags)

	matched := make([]string, 0, len(matchedSet))
	for kw := range matchedSet {
		matched = append(matched, kw)
	}
	sort.Strings(matched)

	return Result{Tags: tags, MatchedKeywords: matched}
}

// tokenize splits a filename stem into lowercase tokens on
// non-alphanumeric boundaries.
func tokenize(stem string) []string {
	stem = strings.ToLower(stem)
	return strings.FieldsFunc(stem, func(r rune) bool {
		return !isAlphanumeric(r)
	})
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func matches(keyword string, tokens []string, haystack string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, keyword) {
			return true
		}
	}
	return strings.Contains(haystack, keyword)
}

// Merged returns the read-time union of an item's manual tags and its
// cached derived tags. Manual tags always survive.
func Merged(manual []string, meta store.AutoTagMeta) []string {
	return store.MergeTags(manual, meta.Tags)
}
