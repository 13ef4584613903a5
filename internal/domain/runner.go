package domain

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	m "trellis.dev/pkg/trellis/internal/model"
)

// Setting keys understood by the runners.
const (
	// SettingRunTimeout bounds a whole run; a time.Duration or a duration string.
	SettingRunTimeout = "run.timeout"
	// SettingStopOnFailure stops a run after the first failing or erroring case.
	SettingStopOnFailure = "run.stop-on-failure"
)

// RunnerState tracks the lifecycle of a runner.
type RunnerState int

const (
	// StateUnloaded means no test tree is loaded.
	StateUnloaded RunnerState = iota
	// StateLoaded means a tree is loaded and no run has happened since.
	StateLoaded
	// StateRunning means a run is in progress.
	StateRunning
	// StateCompleted means the last run finished normally.
	StateCompleted
	// StateCancelled means the last run was cancelled or timed out.
	StateCancelled
)

func (s RunnerState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("RunnerState(%d)", int(s))
	}
}

// Runner loads a test tree and runs it, synchronously or in the background.
type Runner interface {
	ID() int
	Settings() *m.Settings
	Running() bool
	Test() m.Test
	// Result returns the result of the last completed run.
	Result() m.Result

	// Load replaces the loaded tree. Failures are *LoadError values.
	Load(ctx context.Context, spec LoadSpec) error
	Unload(ctx context.Context) error
	CountTestCases(filter m.Filter) int
	Categories() []string

	Run(ctx context.Context, listener m.Listener, filter m.Filter) (m.Result, error)
	BeginRun(ctx context.Context, listener m.Listener, filter m.Filter) error
	EndRun() (m.Result, error)
	Wait()
	CancelRun()

	Close() error
}

// LoadSpec names what to load: one source, a project of several sources
// wrapped in a suite called Name, and optionally a single test inside them.
type LoadSpec struct {
	Name     string
	Sources  []string
	TestName string
}

func (s LoadSpec) String() string {
	var b strings.Builder

	switch {
	case s.Name != "":
		b.WriteString(s.Name)
	case len(s.Sources) > 0:
		b.WriteString(strings.Join(s.Sources, ","))
	default:
		b.WriteString("<empty>")
	}

	if s.TestName != "" {
		b.WriteString("#")
		b.WriteString(s.TestName)
	}

	return b.String()
}

// Loader builds the test tree of one source. Returning an error matching
// fs.ErrNotExist makes the load a not-found failure.
type Loader interface {
	LoadSource(ctx context.Context, source string, settings *m.Settings) (m.Test, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, source string, settings *m.Settings) (m.Test, error)

// LoadSource implements Loader.
func (f LoaderFunc) LoadSource(ctx context.Context, source string, settings *m.Settings) (m.Test, error) {
	return f(ctx, source, settings)
}

// Catalog is a Loader over trees registered in code.
type Catalog struct {
	mu       sync.RWMutex
	builders map[string]func() m.Test
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{builders: map[string]func() m.Test{}}
}

// Register makes build reachable as source name. build must return a fresh tree per call.
func (c *Catalog) Register(name string, build func() m.Test) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.builders[name] = build
}

// Sources lists the registered names, sorted.
func (c *Catalog) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.builders))
	for name := range c.builders {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// LoadSource implements Loader.
func (c *Catalog) LoadSource(_ context.Context, source string, _ *m.Settings) (m.Test, error) {
	c.mu.RLock()
	build, ok := c.builders[source]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("source %q: %w", source, fs.ErrNotExist)
	}

	return build(), nil
}
