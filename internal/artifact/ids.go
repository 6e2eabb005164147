package artifact

import (
	"fmt"
	"strconv"
	"strings"
)

// --- Sequential ID allocation ---
//
// IDs follow "<PREFIX>-<NNN>". Each prefix has its own pool, and only the
// running maximum matters: gaps left by superseded or imported records are
// never refilled, so IDs within a prefix are strictly increasing.

// numericSuffix extracts the numeric part of an ID like "S-042".
// Returns -1 if the ID does not match the "<prefix>-<number>" shape.
func numericSuffix(id string, prefix Prefix) int {
	head := string(prefix) + "-"
	if !strings.HasPrefix(id, head) {
		return -1
	}
	n, err := strconv.Atoi(id[len(head):])
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// maxSuffix returns the highest numeric suffix among the given IDs for the
// prefix, or 0 if none match.
func maxSuffix(ids []string, prefix Prefix) int {
	max := 0
	for _, id := range ids {
		if n := numericSuffix(id, prefix); n > max {
			max = n
		}
	}
	return max
}

// FormatID renders an ID for a prefix and sequence number, zero-padded to
// three digits ("S-007"). Numbers past 999 simply grow wider.
func FormatID(prefix Prefix, n int) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// nextID allocates the next ID for a prefix given all existing IDs in that
// prefix's pool.
func nextID(prefix Prefix, existing []string) string {
	return FormatID(prefix, maxSuffix(existing, prefix)+1)
}

// ids collects the existing ID pool for a prefix from the graph.
func (g *Graph) ids(prefix Prefix) []string {
	var out []string
	switch prefix {
	case PrefixEntity:
		for _, e := range g.Entities {
			out = append(out, e.ID)
		}
	case PrefixStory:
		for _, s := range g.Stories {
			out = append(out, s.ID)
		}
	case PrefixTask:
		for _, t := range g.Tasks {
			out = append(out, t.ID)
		}
	case PrefixDecision:
		for _, d := range g.Decisions {
			out = append(out, d.ID)
		}
	}
	return out
}

// NextID returns the next free ID for the prefix, computed against the
// graph's current pool.
func (g *Graph) NextID(prefix Prefix) string {
	return nextID(prefix, g.ids(prefix))
}

// PrefixOf classifies an artifact ID by its prefix. The second return is
// false for IDs that don't belong to any known pool (e.g. semantic-store
// capability IDs like "CAP-F-001").
func PrefixOf(id string) (Prefix, bool) {
	for _, p := range []Prefix{PrefixEntity, PrefixStory, PrefixTask, PrefixDecision} {
		if numericSuffix(id, p) >= 0 {
			return p, true
		}
	}
	return "", false
}
