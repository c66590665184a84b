// Package hashtag extracts hashtags from free-form caption text.
package hashtag

import (
	"regexp"
	"strings"
)

// tagPattern matches "#" followed by one or more Unicode letters, digits,
// underscores or hyphens.
var tagPattern = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)

// Extract returns all hashtags found in the caption, lowercased and
// de-duplicated, preserving first-seen order. A caption with no hashtags
// yields an empty slice. Extract never fails.
func Extract(caption string) []string {
	matches := tagPattern.FindAllStringSubmatch(caption, -1)

	tags := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// Normalize lowercases an incoming tag filter so it compares directly
// against stored tags, which are normalized at write time.
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
