package watch

import (
	"strings"
	"time"
)

// Category classifies a source change by which part of the project it affects.
type Category uint8

const (
	CategoryUI Category = iota
	CategoryServer
	CategoryStyle
	CategoryAsset
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryUI:
		return "ui"
	case CategoryServer:
		return "server"
	case CategoryStyle:
		return "style"
	case CategoryAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// CategorySet is a set of change categories. Repeated categories collapse
// and order is irrelevant.
type CategorySet uint8

// NewCategorySet builds a set from the given categories.
func NewCategorySet(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s = s.Add(c)
	}
	return s
}

// Add returns the set with c included.
func (s CategorySet) Add(c Category) CategorySet {
	return s | (1 << c)
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	return s&(1<<c) != 0
}

// Union returns the union of both sets.
func (s CategorySet) Union(o CategorySet) CategorySet {
	return s | o
}

// Empty reports whether the set contains no categories.
func (s CategorySet) Empty() bool {
	return s == 0
}

// Categories returns the members of the set.
func (s CategorySet) Categories() []Category {
	var cats []Category
	for _, c := range []Category{CategoryUI, CategoryServer, CategoryStyle, CategoryAsset} {
		if s.Has(c) {
			cats = append(cats, c)
		}
	}
	return cats
}

// String returns a comma-separated list of category names.
func (s CategorySet) String() string {
	var names []string
	for _, c := range s.Categories() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}

// Event is a single classified file-system change. Events are immutable and
// consumed once by the debouncer.
type Event struct {
	Path     string
	Category Category
	Time     time.Time
}

// Intent is a coalesced request to rebuild, covering the union of the
// categories seen within one debounce window.
type Intent struct {
	Categories CategorySet
	Triggered  time.Time
}
