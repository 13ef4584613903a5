package domain

import (
	"fmt"

	m "trellis.dev/pkg/trellis/internal/model"
)

// BuildFilter combines name and category selections: names and categories
// must both match when given, excluded categories must not.
func BuildFilter(names, categories, excludeCategories []string) m.Filter {
	var filters []m.Filter

	if len(names) > 0 {
		filters = append(filters, m.NewNameFilter(names...))
	}

	if len(categories) > 0 {
		filters = append(filters, m.NewCategoryFilter(categories...))
	}

	if len(excludeCategories) > 0 {
		filters = append(filters, m.NotFilter{Base: m.NewCategoryFilter(excludeCategories...)})
	}

	switch len(filters) {
	case 0:
		return m.Empty
	case 1:
		return filters[0]
	default:
		return m.AndFilter{Filters: filters}
	}
}

// ShardFilter selects every total-th case of a tree starting at index, in
// declaration order, so that total runs with indexes 0..total-1 together run
// each case exactly once.
type ShardFilter struct {
	index, total int
	selected     map[m.Test]struct{}
}

// NewShardFilter numbers the cases of tree and keeps those of shard index.
func NewShardFilter(tree m.Test, index, total int) (*ShardFilter, error) {
	if total <= 0 || index < 0 || index >= total {
		return nil, fmt.Errorf("invalid shard %d/%d", index, total)
	}

	f := &ShardFilter{index: index, total: total, selected: map[m.Test]struct{}{}}

	position := 0

	var walk func(test m.Test) bool

	walk = func(test m.Test) bool {
		suite, ok := test.(*m.Suite)
		if !ok {
			keep := position%total == index
			position++

			if keep {
				f.selected[test] = struct{}{}
			}

			return keep
		}

		kept := false

		for _, child := range suite.Tests() {
			if walk(child) {
				kept = true
			}
		}

		if kept {
			f.selected[test] = struct{}{}
		}

		return kept
	}

	if tree != nil {
		walk(tree)
	}

	return f, nil
}

// Pass reports whether test is, or contains, a case of this shard.
func (f *ShardFilter) Pass(test m.Test) bool {
	_, ok := f.selected[test]
	return ok
}

func (f *ShardFilter) String() string {
	return fmt.Sprintf("shard(%d/%d)", f.index, f.total)
}
