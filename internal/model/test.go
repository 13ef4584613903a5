// Package model defines the test tree, the filter algebra, results and the listener contract.
package model

import (
	"context"
	"fmt"
	"strings"
)

// Test is a node in the composite test tree: either a *Case or a *Suite.
type Test interface {
	Name() string
	Path() string
	// FullName is the qualified name used for name filtering and reporting.
	FullName() string
	Parent() *Suite
	Categories() []string
	ShouldRun() bool
	IgnoreReason() string
	IsExplicit() bool
	IsSuite() bool
	// TestCount returns the number of leaves below this node, ignoring filters.
	TestCount() int
	// CountTestCases returns the number of leaves a run with filter would start.
	CountTestCases(filter Filter) int
	// Filter reports whether filter passes this node.
	Filter(filter Filter) bool
	Run(ctx context.Context, listener Listener) Result
	RunFiltered(ctx context.Context, listener Listener, filter Filter) Result

	count(filter Filter, selectedOnly bool) int
	run(ctx context.Context, listener Listener, filter Filter, selectedOnly bool) Result
	setParent(parent *Suite)
}

// Option configures the attributes shared by cases and suites.
type Option func(*node)

// WithPath sets the qualifying namespace path of the node.
func WithPath(path string) Option {
	return func(n *node) {
		n.path = path
	}
}

// WithCategories tags the node with the given categories.
func WithCategories(categories ...string) Option {
	return func(n *node) {
		n.categories = append(n.categories, categories...)
	}
}

// WithIgnore marks the node as not runnable, reporting reason when reached.
func WithIgnore(reason string) Option {
	return func(n *node) {
		n.shouldRun = false
		n.ignoreReason = reason
	}
}

// WithExplicit excludes the node from runs that do not select it explicitly.
func WithExplicit() Option {
	return func(n *node) {
		n.explicit = true
	}
}

type node struct {
	path         string
	name         string
	categories   []string
	shouldRun    bool
	ignoreReason string
	explicit     bool
	parent       *Suite
}

func newNode(name string, opts []Option) node {
	n := node{name: name, shouldRun: true}
	for _, opt := range opts {
		opt(&n)
	}

	return n
}

// Name returns the simple name of the node.
func (n *node) Name() string { return n.name }

// Path returns the qualifying path of the node.
func (n *node) Path() string { return n.path }

// FullName returns Path + "." + Name, or Name when the path is empty.
func (n *node) FullName() string {
	if n.path == "" {
		return n.name
	}

	return n.path + "." + n.name
}

// Parent returns the suite holding this node, or nil for a root.
func (n *node) Parent() *Suite { return n.parent }

// Categories returns the node's own categories.
func (n *node) Categories() []string { return n.categories }

// IsExplicit reports whether the node requires explicit selection.
func (n *node) IsExplicit() bool { return n.explicit }

func (n *node) setParent(parent *Suite) { n.parent = parent }

// parentOf avoids wrapping a nil *Suite in a non-nil Test interface.
func parentOf(test Test) Test {
	parent := test.Parent()
	if parent == nil {
		return nil
	}

	return parent
}

// TestName identifies a node across a runner chain.
type TestName struct {
	RunnerID int
	FullName string
	Name     string
}

// NameOf returns the TestName of test as seen from runner runnerID.
func NameOf(runnerID int, test Test) TestName {
	return TestName{RunnerID: runnerID, FullName: test.FullName(), Name: test.Name()}
}

func (n TestName) String() string {
	return fmt.Sprintf("%d:%s", n.RunnerID, n.FullName)
}

// InfoOf builds the listener-facing description of test.
func InfoOf(test Test) TestInfo {
	info := TestInfo{
		Name:       test.Name(),
		FullName:   test.FullName(),
		IsSuite:    test.IsSuite(),
		TestCount:  test.TestCount(),
		Categories: append([]string(nil), test.Categories()...),
	}

	if c, ok := test.(*Case); ok {
		info.Description = c.Description
	}

	return info
}

// Find returns the first node in tree whose full name or simple name equals name,
// searching depth first in declaration order.
func Find(tree Test, name string) Test {
	if tree == nil {
		return nil
	}

	if tree.FullName() == name || tree.Name() == name {
		return tree
	}

	suite, ok := tree.(*Suite)
	if !ok {
		return nil
	}

	for _, child := range suite.Tests() {
		if found := Find(child, name); found != nil {
			return found
		}
	}

	return nil
}

// Categories collects the distinct categories used anywhere in tree, in first-seen order.
func Categories(tree Test) []string {
	var out []string

	seen := map[string]bool{}

	var walk func(Test)

	walk = func(t Test) {
		for _, c := range t.Categories() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}

		if suite, ok := t.(*Suite); ok {
			for _, child := range suite.Tests() {
				walk(child)
			}
		}
	}

	if tree != nil {
		walk(tree)
	}

	return out
}

// JoinPath joins name segments with the qualified-name separator, skipping empty ones.
func JoinPath(parts ...string) string {
	kept := parts[:0:0]

	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, ".")
}
