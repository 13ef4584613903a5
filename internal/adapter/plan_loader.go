package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	m "trellis.dev/pkg/trellis/internal/model"
)

// SettingCaseTimeout bounds each plan command; a time.Duration or a duration string.
// A timeout declared in the plan takes precedence.
const SettingCaseTimeout = "plan.case-timeout"

// planPattern matches plan files below a directory source.
const planPattern = "**/*.{yaml,yml}"

// ErrInvalidPlan is wrapped by every plan validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

type planSuite struct {
	Name         string            `yaml:"name"`
	Categories   []string          `yaml:"categories"`
	Ignore       string            `yaml:"ignore"`
	Explicit     bool              `yaml:"explicit"`
	Dir          string            `yaml:"dir"`
	Env          map[string]string `yaml:"env"`
	Timeout      string            `yaml:"timeout"`
	SetUp        string            `yaml:"setup"`
	TearDown     string            `yaml:"teardown"`
	CaseSetUp    string            `yaml:"case_setup"`
	CaseTearDown string            `yaml:"case_teardown"`
	Suites       []planSuite       `yaml:"suites"`
	Cases        []planCase        `yaml:"cases"`
}

type planCase struct {
	Name        string            `yaml:"name"`
	Run         string            `yaml:"run"`
	Description string            `yaml:"description"`
	Categories  []string          `yaml:"categories"`
	Ignore      string            `yaml:"ignore"`
	Explicit    bool              `yaml:"explicit"`
	Dir         string            `yaml:"dir"`
	Env         map[string]string `yaml:"env"`
	Timeout     string            `yaml:"timeout"`
}

// PlanLoader builds test trees from YAML plan files whose cases run shell commands.
type PlanLoader struct {
	commands CommandRunner
	parallel int
}

// NewPlanLoader creates a PlanLoader executing plan commands with commands.
func NewPlanLoader(commands CommandRunner) *PlanLoader {
	return &PlanLoader{commands: commands, parallel: 4}
}

// SetParallel sets how many plan files are parsed at once. Values below 1 are ignored.
func (l *PlanLoader) SetParallel(n int) {
	if n > 0 {
		l.parallel = n
	}
}

// LoadSource loads a plan file, every plan below a directory, or every file
// matching a doublestar glob. Several files are grouped in a suite named after
// the directory holding them.
func (l *PlanLoader) LoadSource(ctx context.Context, source string, settings *m.Settings) (m.Test, error) {
	files, err := l.resolve(source)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		settings = m.NewSettings()
	}

	trees := make([]m.Test, len(files))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(l.parallel)

	for i, file := range files {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			tree, err := l.loadFile(file, settings)
			if err != nil {
				return err
			}

			trees[i] = tree

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if len(trees) == 1 {
		return trees[0], nil
	}

	root := m.NewSuite(groupName(source))
	if err := root.Add(trees...); err != nil {
		return nil, err
	}

	return root, nil
}

func (l *PlanLoader) resolve(source string) ([]string, error) {
	pattern := source

	info, err := os.Stat(source)

	switch {
	case err == nil && info.IsDir():
		pattern = filepath.Join(source, planPattern)
	case err == nil:
		return []string{source}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat %s: %w", source, err)
	}

	files, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no plan files match %s: %w", source, fs.ErrNotExist)
	}

	sort.Strings(files)

	slog.Debug("Resolved plan files", "source", source, "count", len(files))

	return files, nil
}

// groupName names the suite grouping the files of source after the
// directory it was resolved from.
func groupName(source string) string {
	base := filepath.Clean(source)
	if strings.ContainsAny(base, "*?[{") {
		base, _ = doublestar.SplitPattern(filepath.ToSlash(base))
	}

	name := filepath.Base(base)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "plans"
	}

	return name
}

func (l *PlanLoader) loadFile(path string, settings *m.Settings) (m.Test, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan planSuite
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPlan, path, err)
	}

	if plan.Name == "" {
		plan.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	b := &planBuilder{
		commands: l.commands,
		settings: settings,
		file:     path,
		baseDir:  filepath.Dir(path),
	}

	return b.suite(plan, "", scope{dir: b.baseDir})
}

// scope carries what a suite passes down to its children.
type scope struct {
	dir     string
	env     []string
	timeout time.Duration
}

type planBuilder struct {
	commands CommandRunner
	settings *m.Settings
	file     string
	baseDir  string
}

func (b *planBuilder) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPlan, b.file, fmt.Sprintf(format, args...))
}

func (b *planBuilder) suite(plan planSuite, path string, parent scope) (*m.Suite, error) {
	if plan.Name == "" {
		return nil, b.invalid("suite without a name under %q", path)
	}

	sc, err := b.scope(parent, plan.Dir, plan.Env, plan.Timeout)
	if err != nil {
		return nil, err
	}

	opts := nodeOptions(path, plan.Categories, plan.Ignore, plan.Explicit)

	var suite *m.Suite
	if len(plan.Cases) > 0 || plan.SetUp != "" || plan.TearDown != "" || plan.CaseSetUp != "" || plan.CaseTearDown != "" {
		suite = m.NewFixture(plan.Name, opts...)
	} else {
		suite = m.NewSuite(plan.Name, opts...)
	}

	if plan.SetUp != "" {
		suite.SetUp = b.hook(plan.SetUp, sc)
	}

	if plan.TearDown != "" {
		suite.TearDown = b.hook(plan.TearDown, sc)
	}

	if plan.CaseSetUp != "" {
		suite.CaseSetUp = b.body(plan.CaseSetUp, sc)
	}

	if plan.CaseTearDown != "" {
		suite.CaseTearDown = b.body(plan.CaseTearDown, sc)
	}

	seen := map[string]bool{}

	for _, child := range plan.Suites {
		if seen[child.Name] {
			return nil, b.invalid("duplicate name %q in %s", child.Name, suite.FullName())
		}

		seen[child.Name] = true

		built, err := b.suite(child, suite.FullName(), sc)
		if err != nil {
			return nil, err
		}

		if err := suite.Add(built); err != nil {
			return nil, err
		}
	}

	for _, pc := range plan.Cases {
		if seen[pc.Name] {
			return nil, b.invalid("duplicate name %q in %s", pc.Name, suite.FullName())
		}

		seen[pc.Name] = true

		c, err := b.testCase(pc, suite.FullName(), sc)
		if err != nil {
			return nil, err
		}

		if err := suite.Add(c); err != nil {
			return nil, err
		}
	}

	return suite, nil
}

func (b *planBuilder) testCase(pc planCase, path string, parent scope) (*m.Case, error) {
	if pc.Name == "" {
		return nil, b.invalid("case without a name in %s", path)
	}

	if pc.Run == "" && pc.Ignore == "" {
		return nil, b.invalid("case %s.%s has nothing to run", path, pc.Name)
	}

	sc, err := b.scope(parent, pc.Dir, pc.Env, pc.Timeout)
	if err != nil {
		return nil, err
	}

	c := m.NewCase(pc.Name, b.body(pc.Run, sc), nodeOptions(path, pc.Categories, pc.Ignore, pc.Explicit)...)
	c.Description = pc.Description

	return c, nil
}

func (b *planBuilder) scope(parent scope, dir string, env map[string]string, timeout string) (scope, error) {
	sc := scope{dir: parent.dir, env: append([]string(nil), parent.env...), timeout: parent.timeout}

	if dir != "" {
		if filepath.IsAbs(dir) {
			sc.dir = dir
		} else {
			sc.dir = filepath.Join(parent.dir, dir)
		}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		sc.env = append(sc.env, k+"="+env[k])
	}

	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return scope{}, b.invalid("bad timeout %q", timeout)
		}

		sc.timeout = d
	}

	return sc, nil
}

func (b *planBuilder) command(script string, sc scope) Command {
	timeout := sc.timeout
	if timeout == 0 {
		timeout = b.settings.GetDuration(SettingCaseTimeout, 0)
	}

	return Command{Script: script, Dir: sc.dir, Env: sc.env, Timeout: timeout}
}

// body runs script as a case. A non-zero exit is a failure; anything else
// that stops the command is an error.
func (b *planBuilder) body(script string, sc scope) m.Body {
	return func(t *m.T) error {
		// The command in flight finishes even when the run is cancelled.
		ctx := context.WithoutCancel(t.Context())

		err := b.commands.RunCommand(ctx, b.command(script, sc), t.Output(), t.ErrorOutput())
		if err == nil {
			return nil
		}

		if code := ExitCode(err); code >= 0 {
			return m.Fail("command exited with status %d", code)
		}

		return pkgerrors.WithStack(err)
	}
}

func (b *planBuilder) hook(script string, sc scope) m.Hook {
	return func(ctx context.Context) error {
		var out bytes.Buffer

		err := b.commands.RunCommand(context.WithoutCancel(ctx), b.command(script, sc), &out, &out)
		if err == nil {
			return nil
		}

		slog.Debug("Plan hook failed", "file", b.file, "script", script, "output", out.String())

		if code := ExitCode(err); code >= 0 {
			return pkgerrors.Errorf("%q exited with status %d: %s", script, code, strings.TrimSpace(out.String()))
		}

		return pkgerrors.Wrapf(err, "%q", script)
	}
}

func nodeOptions(path string, categories []string, ignore string, explicit bool) []m.Option {
	opts := []m.Option{m.WithPath(path)}

	if len(categories) > 0 {
		opts = append(opts, m.WithCategories(categories...))
	}

	if ignore != "" {
		opts = append(opts, m.WithIgnore(ignore))
	}

	if explicit {
		opts = append(opts, m.WithExplicit())
	}

	return opts
}
