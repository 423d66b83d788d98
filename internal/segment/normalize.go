package segment

import (
	"math"
	"regexp"
	"strings"
)

// idPattern restricts segment and project ids to filesystem- and
// index-safe characters. Project ids become shard file names, so path
// separators and dots are rejected outright.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// MaxIDLength bounds id length to keep shard file names portable.
const MaxIDLength = 128

// ValidID reports whether s is a well-formed segment or project id.
func ValidID(s string) bool {
	return s != "" && len(s) <= MaxIDLength && idPattern.MatchString(s)
}

// NormalizeTag lowercases and trims a tag for index lookups.
func NormalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EstimateTokens estimates token count using a word-based heuristic
// (1.3 tokens per whitespace-separated word). The estimate is computed
// once when text is set and cached on the segment; it is never
// recomputed implicitly.
func EstimateTokens(text string) int {
	words := strings.Fields(strings.TrimSpace(text))
	return int(math.Ceil(float64(len(words)) * 1.3))
}
