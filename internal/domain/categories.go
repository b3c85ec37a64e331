package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultCategories is the color set used when none is configured.
var DefaultCategories = []Category{"red", "blue", "yellow", "green"}

// CategorySet is a validated category set kept in canonical (alphabetical) order.
// Canonical order drives result ordering and tie-breaking.
type CategorySet struct {
	ordered []Category
	index   map[Category]int
}

// NewCategorySet normalizes keys to lower case and rejects empty or duplicate entries.
func NewCategorySet(categories []Category) (CategorySet, error) {
	if len(categories) == 0 {
		return CategorySet{}, fmt.Errorf("category set is empty")
	}
	ordered := make([]Category, 0, len(categories))
	seen := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		key := Category(strings.ToLower(strings.TrimSpace(string(c))))
		if key == "" {
			return CategorySet{}, fmt.Errorf("category set contains an empty key")
		}
		if _, dup := seen[key]; dup {
			return CategorySet{}, fmt.Errorf("duplicate category %q", key)
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	index := make(map[Category]int, len(ordered))
	for i, c := range ordered {
		index[c] = i
	}
	return CategorySet{ordered: ordered, index: index}, nil
}

// MustCategorySet panics on an invalid set. Intended for package-level defaults and tests.
func MustCategorySet(categories ...Category) CategorySet {
	set, err := NewCategorySet(categories)
	if err != nil {
		panic(err)
	}
	return set
}

// Canonical returns a copy of the categories in canonical order.
func (s CategorySet) Canonical() []Category {
	out := make([]Category, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s CategorySet) Len() int { return len(s.ordered) }

// Index returns the canonical position of c.
func (s CategorySet) Index(c Category) (int, bool) {
	i, ok := s.index[c]
	return i, ok
}
