package search

import (
	"sort"
	"strings"

	"github.com/sidequest/backend/internal/domain/entities"
)

const MaxIndexedTerms = 50

// buildEstablishmentTags collects lowercase search terms for an establishment:
// its name, category and each comma separated part of its address.
func buildEstablishmentTags(e *entities.Establishment) []string {
	if e == nil {
		return nil
	}

	set := make(map[string]struct{})
	add(set, e.Name, e.Category)
	add(set, strings.Split(e.Address, ",")...)

	return toSlice(set, MaxIndexedTerms)
}

func add(set map[string]struct{}, terms ...string) {
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
}

func toSlice(set map[string]struct{}, limit int) []string {
	result := make([]string, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Strings(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
