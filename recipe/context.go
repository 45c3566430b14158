package recipe

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/goplus/llarhub/pkgs/runner"
	"go.uber.org/zap"
)

// Folders are the working directories of one package build.
type Folders struct {
	Source     string `json:"source"`
	Build      string `json:"build"`
	Generators string `json:"generators"`
	Package    string `json:"package"`
}

// Dependency is a built dependency as seen by its consumer.
type Dependency struct {
	Ref           Ref
	PackageFolder string
	Info          *PackageInfo
	// Options are the options the dependency was built with.
	Options *Options
	// Build is set for tool requirements.
	Build bool
}

// CppInfo returns the dependency's CppInfo.
func (d *Dependency) CppInfo() *CppInfo {
	if d.Info == nil || d.Info.CppInfo == nil {
		return NewCppInfo()
	}
	return d.Info.CppInfo
}

// Context is what a recipe sees while running its hooks.
type Context struct {
	Ref      Ref
	Settings Settings
	// SettingsBuild describes the machine running the build. It equals
	// Settings unless cross building.
	SettingsBuild Settings
	Options       *Options
	Folders       Folders
	Data          *Data
	// Deps holds host dependencies, transitive ones included.
	Deps map[string]*Dependency
	// BuildDeps holds tool requirements.
	BuildDeps map[string]*Dependency
	// Env is the build environment; generators add to it and every
	// command run through Run sees it.
	Env *Env
	// Runtime is Env plus what running binaries built against the
	// dependencies needs, such as their lib dirs on the loader path.
	Runtime *Env
	// DryRun is set when sources were not retrieved and commands are
	// recorded instead of run. Edits of source files are then skipped.
	DryRun bool
	// Jobs is the parallelism passed to make and friends.
	Jobs   int
	Log    *zap.Logger
	Runner runner.Runner
	Stdout io.Writer
	Stderr io.Writer
}

// Version is shorthand for c.Ref.Version.
func (c *Context) Version() string {
	return c.Ref.Version
}

// CrossBuilding reports whether host and build platforms differ.
func (c *Context) CrossBuilding() bool {
	b := c.SettingsBuild
	if b.OS == "" && b.Arch == "" {
		return false
	}
	return b.OS != c.Settings.OS || b.Arch != c.Settings.Arch
}

// Dependency returns the named host or tool dependency.
func (c *Context) Dependency(name string) (*Dependency, error) {
	if d, ok := c.Deps[name]; ok {
		return d, nil
	}
	if d, ok := c.BuildDeps[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%s: no dependency named %q", c.Ref, name)
}

// DepNames returns the host dependency names sorted.
func (c *Context) DepNames() []string {
	names := make([]string, 0, len(c.Deps))
	for name := range c.Deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parallel returns the job count, defaulting to the number of CPUs.
func (c *Context) Parallel() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}

// Logger never returns nil.
func (c *Context) Logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log.With(zap.String("ref", c.Ref.String()))
}

// Environ returns the process environment overlaid with c.Env.
func (c *Context) Environ() []string {
	if c.Env == nil {
		return runner.MergeEnv(os.Environ(), nil)
	}
	return runner.MergeEnv(os.Environ(), c.Env.Environ())
}

// Run runs name with args in dir under the build environment.
func (c *Context) Run(ctx context.Context, dir, name string, args ...string) error {
	return c.RunEnv(ctx, dir, nil, name, args...)
}

// RunEnv is like Run with extra variables layered on the build
// environment.
func (c *Context) RunEnv(ctx context.Context, dir string, extra []string, name string, args ...string) error {
	r := c.Runner
	if r == nil {
		r = &runner.Exec{Stdout: c.Stdout, Stderr: c.Stderr, Log: c.Log}
	}
	return r.Run(ctx, &runner.Cmd{
		Dir:  dir,
		Env:  runner.MergeEnv(c.Environ(), extra),
		Name: name,
		Args: args,
	})
}
