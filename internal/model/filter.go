package model

import (
	"sort"
	"strings"
)

// Filter selects tests for counting and running.
type Filter interface {
	Pass(test Test) bool
}

type emptyFilter struct{}

func (emptyFilter) Pass(Test) bool { return true }

func (emptyFilter) String() string { return "*" }

// Empty passes every test. Explicit tests are still excluded by traversal.
var Empty Filter = emptyFilter{}

func orEmpty(filter Filter) Filter {
	if filter == nil {
		return Empty
	}

	return filter
}

// IsEmpty reports whether filter selects everything.
func IsEmpty(filter Filter) bool {
	return filter == nil || filter == Empty
}

// NameFilter passes tests whose full name, or an ancestor's full name, was added.
type NameFilter struct {
	names map[string]struct{}
}

// NewNameFilter creates a NameFilter accepting names.
func NewNameFilter(names ...string) *NameFilter {
	f := &NameFilter{names: map[string]struct{}{}}
	for _, name := range names {
		f.Add(name)
	}

	return f
}

// Add accepts one more qualified name.
func (f *NameFilter) Add(name string) {
	if f.names == nil {
		f.names = map[string]struct{}{}
	}

	f.names[name] = struct{}{}
}

// Len returns the number of accepted names.
func (f *NameFilter) Len() int { return len(f.names) }

// Pass implements Filter.
func (f *NameFilter) Pass(test Test) bool {
	for t := test; t != nil; t = parentOf(t) {
		if f.has(t) {
			return true
		}
	}

	return false
}

func (f *NameFilter) has(test Test) bool {
	_, ok := f.names[test.FullName()]
	return ok
}

func (f *NameFilter) String() string {
	return "name(" + strings.Join(sortedKeys(f.names), ",") + ")"
}

// CategoryFilter passes tests carrying one of the accepted categories. A case
// also matches through the categories of its nearest fixture.
type CategoryFilter struct {
	categories map[string]struct{}
}

// NewCategoryFilter creates a CategoryFilter accepting categories.
func NewCategoryFilter(categories ...string) *CategoryFilter {
	f := &CategoryFilter{categories: map[string]struct{}{}}
	for _, c := range categories {
		f.AddCategory(c)
	}

	return f
}

// AddCategory accepts one more category.
func (f *CategoryFilter) AddCategory(category string) {
	if f.categories == nil {
		f.categories = map[string]struct{}{}
	}

	f.categories[category] = struct{}{}
}

// Pass implements Filter.
func (f *CategoryFilter) Pass(test Test) bool {
	if f.matches(test) {
		return true
	}

	if test.IsSuite() {
		return false
	}

	for s := test.Parent(); s != nil; s = s.Parent() {
		if s.IsFixture() {
			return f.matches(s)
		}
	}

	return false
}

func (f *CategoryFilter) matches(test Test) bool {
	for _, c := range test.Categories() {
		if _, ok := f.categories[c]; ok {
			return true
		}
	}

	return false
}

func (f *CategoryFilter) String() string {
	return "category(" + strings.Join(sortedKeys(f.categories), ",") + ")"
}

// NotFilter negates Base. It never selects explicit tests.
type NotFilter struct {
	Base Filter
}

// Pass implements Filter.
func (f NotFilter) Pass(test Test) bool {
	return !orEmpty(f.Base).Pass(test)
}

func (f NotFilter) String() string {
	return "not(" + describe(f.Base) + ")"
}

// AndFilter passes tests every one of Filters passes.
type AndFilter struct {
	Filters []Filter
}

// Pass implements Filter.
func (f AndFilter) Pass(test Test) bool {
	for _, filter := range f.Filters {
		if !orEmpty(filter).Pass(test) {
			return false
		}
	}

	return true
}

func (f AndFilter) String() string {
	return "and(" + describeAll(f.Filters) + ")"
}

// OrFilter passes tests at least one of Filters passes.
type OrFilter struct {
	Filters []Filter
}

// Pass implements Filter.
func (f OrFilter) Pass(test Test) bool {
	for _, filter := range f.Filters {
		if orEmpty(filter).Pass(test) {
			return true
		}
	}

	return false
}

func (f OrFilter) String() string {
	return "or(" + describeAll(f.Filters) + ")"
}

// SelectsExplicitly reports whether filter selects test directly, which is what
// an explicit test needs in order to be run by a traversal. A category on the
// nearest fixture counts for its cases; ancestor names and negations do not.
func SelectsExplicitly(filter Filter, test Test) bool {
	switch f := filter.(type) {
	case *NameFilter:
		return f.has(test)
	case *CategoryFilter:
		return f.Pass(test)
	case AndFilter:
		selected := false

		for _, child := range f.Filters {
			if !orEmpty(child).Pass(test) {
				return false
			}

			if SelectsExplicitly(child, test) {
				selected = true
			}
		}

		return selected
	case OrFilter:
		for _, child := range f.Filters {
			if SelectsExplicitly(child, test) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func describe(filter Filter) string {
	if s, ok := orEmpty(filter).(interface{ String() string }); ok {
		return s.String()
	}

	return "?"
}

func describeAll(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, describe(f))
	}

	return strings.Join(parts, ",")
}
