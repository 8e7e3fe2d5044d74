package quota

import (
	"sort"
	"strings"
)

// =============================================================================
// ALLOCATION RESOLVER
// =============================================================================

// fallbackKeywords are checked in this order; the first one contained in
// the label decides the result.
var fallbackKeywords = []struct {
	keyword string
	key     string
}{
	{"junior", AllocationJunior},
	{"senior", AllocationSenior},
	{"manager", AllocationManagers},
}

// LimitFor resolves a job-level label to its allocation.
//
// An exact key match (trimmed, case-insensitive) wins. Otherwise the label is
// matched on the keywords junior, senior, manager. The boolean is false when
// the limit is unknown, which callers must not treat as zero.
func LimitFor(label string, allocations map[string]int) (int, bool) {
	folded := fold(label)
	if folded == "" {
		return 0, false
	}
	if v, ok := lookupFolded(allocations, label, folded); ok {
		return v, true
	}
	for _, fk := range fallbackKeywords {
		if strings.Contains(folded, fk.keyword) {
			return lookupFolded(allocations, fk.key, fold(fk.key))
		}
	}
	return 0, false
}

// lookupFolded finds folded among the allocation keys. When several keys fold
// to the same value, a byte-exact match wins, then the lexicographically
// smallest key.
func lookupFolded(allocations map[string]int, raw, folded string) (int, bool) {
	if v, ok := allocations[raw]; ok && fold(raw) == folded {
		return v, true
	}
	var matches []string
	for k := range allocations {
		if fold(k) == folded {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 {
		return 0, false
	}
	sort.Strings(matches)
	return allocations[matches[0]], true
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
