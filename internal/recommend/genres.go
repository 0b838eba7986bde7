package recommend

import (
	"sort"
	"strings"
)

// GenreSeparator splits a movie's stored genre string into tags.
const GenreSeparator = "/"

// ParseGenres returns the distinct, trimmed, non-empty tags of raw in the
// order they first appear.
func ParseGenres(raw string) []string {
	parts := strings.Split(raw, GenreSeparator)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Tally counts, for each tag, how many of the given genre strings carry it.
func Tally(genres []string) map[string]int {
	counts := make(map[string]int)
	for _, raw := range genres {
		for _, tag := range ParseGenres(raw) {
			counts[tag]++
		}
	}
	return counts
}

// Favorites returns every tag tied for the highest count, sorted.
func Favorites(counts map[string]int) []string {
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return nil
	}
	var out []string
	for tag, n := range counts {
		if n == max {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}
