package domain

import (
	"context"
	"sync"

	m "trellis.dev/pkg/trellis/internal/model"
)

// ProxyRunner forwards every operation to a downstream runner. Its settings
// are buffered until a runner is attached, copied onto it by SetRunner, and
// mirrored on every later write.
type ProxyRunner struct {
	settings *m.Settings

	mu       sync.RWMutex
	id       int
	runner   Runner
	listener m.Listener
}

var _ Runner = (*ProxyRunner)(nil)

// NewProxyRunner creates a proxy in front of runner.
func NewProxyRunner(runner Runner) *ProxyRunner {
	p := NewDeferredProxyRunner(runner.ID())
	p.SetRunner(runner)

	return p
}

// NewDeferredProxyRunner creates a proxy whose downstream runner is attached later.
func NewDeferredProxyRunner(id int) *ProxyRunner {
	p := &ProxyRunner{id: id, settings: m.NewSettings()}
	p.settings.OnChange(p.mirror)

	return p
}

func (p *ProxyRunner) mirror(change m.SettingChange) {
	runner := p.Runner()
	if runner == nil {
		return
	}

	if change.Removed {
		runner.Settings().Remove(change.Key)
		return
	}

	runner.Settings().Set(change.Key, change.Value)
}

// SetRunner attaches runner and copies the buffered settings onto it. A nil
// runner detaches the current one.
func (p *ProxyRunner) SetRunner(runner Runner) {
	p.mu.Lock()
	p.runner = runner

	if runner != nil {
		p.id = runner.ID()
	}
	p.mu.Unlock()

	if runner != nil {
		p.settings.CopyTo(runner.Settings())
	}
}

// Runner returns the downstream runner, or nil.
func (p *ProxyRunner) Runner() Runner {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.runner
}

// Listener returns the listener passed to the last run.
func (p *ProxyRunner) Listener() m.Listener {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.listener
}

func (p *ProxyRunner) setListener(listener m.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listener = listener
}

// ID returns the id of the innermost runner.
func (p *ProxyRunner) ID() int {
	if runner := p.Runner(); runner != nil {
		return runner.ID()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.id
}

// Settings returns the proxy's own settings.
func (p *ProxyRunner) Settings() *m.Settings { return p.settings }

// Running forwards to the downstream runner.
func (p *ProxyRunner) Running() bool {
	if runner := p.Runner(); runner != nil {
		return runner.Running()
	}

	return false
}

// Test forwards to the downstream runner.
func (p *ProxyRunner) Test() m.Test {
	if runner := p.Runner(); runner != nil {
		return runner.Test()
	}

	return nil
}

// Result forwards to the downstream runner.
func (p *ProxyRunner) Result() m.Result {
	if runner := p.Runner(); runner != nil {
		return runner.Result()
	}

	return nil
}

// Load forwards to the downstream runner.
func (p *ProxyRunner) Load(ctx context.Context, spec LoadSpec) error {
	runner := p.Runner()
	if runner == nil {
		return ErrNoRunner
	}

	return runner.Load(ctx, spec)
}

// Unload forwards to the downstream runner.
func (p *ProxyRunner) Unload(ctx context.Context) error {
	runner := p.Runner()
	if runner == nil {
		return ErrNoRunner
	}

	return runner.Unload(ctx)
}

// CountTestCases forwards to the downstream runner.
func (p *ProxyRunner) CountTestCases(filter m.Filter) int {
	if runner := p.Runner(); runner != nil {
		return runner.CountTestCases(filter)
	}

	return 0
}

// Categories forwards to the downstream runner.
func (p *ProxyRunner) Categories() []string {
	if runner := p.Runner(); runner != nil {
		return runner.Categories()
	}

	return nil
}

// Run forwards to the downstream runner and remembers listener.
func (p *ProxyRunner) Run(ctx context.Context, listener m.Listener, filter m.Filter) (m.Result, error) {
	runner := p.Runner()
	if runner == nil {
		return nil, ErrNoRunner
	}

	p.setListener(listener)

	return runner.Run(ctx, listener, filter)
}

// BeginRun forwards to the downstream runner and remembers listener.
func (p *ProxyRunner) BeginRun(ctx context.Context, listener m.Listener, filter m.Filter) error {
	runner := p.Runner()
	if runner == nil {
		return ErrNoRunner
	}

	p.setListener(listener)

	return runner.BeginRun(ctx, listener, filter)
}

// EndRun forwards to the downstream runner.
func (p *ProxyRunner) EndRun() (m.Result, error) {
	runner := p.Runner()
	if runner == nil {
		return nil, ErrNoRunner
	}

	return runner.EndRun()
}

// Wait forwards to the downstream runner.
func (p *ProxyRunner) Wait() {
	if runner := p.Runner(); runner != nil {
		runner.Wait()
	}
}

// CancelRun forwards to the downstream runner.
func (p *ProxyRunner) CancelRun() {
	if runner := p.Runner(); runner != nil {
		runner.CancelRun()
	}
}

// Close closes the downstream runner.
func (p *ProxyRunner) Close() error {
	if runner := p.Runner(); runner != nil {
		return runner.Close()
	}

	return nil
}
