package autotools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/recipe"
)

// AutoTools runs configure and make for a recipe, with the arguments
// and environment its generators left in the generators folder.
type AutoTools struct {
	c          *recipe.Context
	sourceDir  string
	buildDir   string
	installDir string
	env        *recipe.Env

	configureArgs []string
	makeArgs      []string
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New returns a helper building c.Folders.Source out of tree in
// c.Folders.Build. It loads what Toolchain and Deps generated; either
// may be missing.
func New(c *recipe.Context) (*AutoTools, error) {
	a := &AutoTools{
		c:          c,
		sourceDir:  c.Folders.Source,
		buildDir:   c.Folders.Build,
		installDir: c.Folders.Package,
		env:        &recipe.Env{},
	}
	var st state
	ok, err := buildsys.ReadState(c.Folders.Generators, StateFile, &st)
	if err != nil {
		return nil, err
	}
	if ok {
		a.configureArgs = st.ConfigureArgs
		a.makeArgs = st.MakeArgs
		a.env.Merge(st.Env)
	} else {
		a.configureArgs = []string{"--prefix=" + c.Folders.Package}
	}
	var deps recipe.Env
	if _, err := buildsys.ReadState(c.Folders.Generators, DepsState, &deps); err != nil {
		return nil, err
	}
	for _, v := range deps.Vars() {
		a.env.Append(v.Key, v.Value)
	}
	return a, nil
}

func (a *AutoTools) Source(dir string) {
	a.sourceDir = dir
}

func (a *AutoTools) InstallDir(dir string) {
	a.installDir = dir
}

func (a *AutoTools) Env(key, value string) {
	a.env.Define(key, value)
}

// Use configures the build environment to use the specified dependency.
func (a *AutoTools) Use(dep *recipe.Dependency) {
	buildsys.UseDependency(a.env, dep, runtime.GOOS)
}

// Configure runs <source>/configure from the build directory.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(a.buildDir, 0o755); err != nil {
		return err
	}
	configArgs := append([]string{}, a.configureArgs...)
	configArgs = append(configArgs, args...)
	return a.run(ctx, filepath.Join(a.sourceDir, "configure"), configArgs)
}

// Make runs make with the given target ("" for the default one), the
// generated make arguments and args.
func (a *AutoTools) Make(ctx context.Context, target string, args ...string) error {
	cmdArgs := []string{"-j" + strconv.Itoa(a.c.Parallel())}
	if target != "" {
		cmdArgs = append(cmdArgs, target)
	}
	cmdArgs = append(cmdArgs, a.makeArgs...)
	cmdArgs = append(cmdArgs, args...)
	return a.run(ctx, "make", cmdArgs)
}

// Build runs make.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	return a.Make(ctx, "", args...)
}

// Install runs make install.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	return a.Make(ctx, "install", args...)
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.buildDir
}

// ConfigureArgs returns the generated configure arguments.
func (a *AutoTools) ConfigureArgs() []string {
	return append([]string(nil), a.configureArgs...)
}

func (a *AutoTools) run(ctx context.Context, name string, args []string) error {
	return a.c.RunEnv(ctx, a.buildDir, a.env.Environ(), name, args...)
}
