// Package recipetest provides contexts for exercising recipe hooks in
// tests without running external tools.
package recipetest

import (
	"path/filepath"
	"testing"

	"github.com/goplus/llarhub/pkgs/runner"
	"github.com/goplus/llarhub/recipe"
	"go.uber.org/zap/zaptest"
)

// LinuxGCC is a typical Linux host.
var LinuxGCC = recipe.Settings{
	OS:        recipe.Linux,
	Arch:      "x86_64",
	BuildType: recipe.Release,
	Compiler:  recipe.Compiler{Name: "gcc", Version: "12", Libcxx: "libstdc++11"},
}

// NewContext returns a context for r at ref with folders under a test
// temp dir and commands recorded instead of run.
func NewContext(t testing.TB, r recipe.Recipe, ref string, s recipe.Settings) (*recipe.Context, *runner.Recorder) {
	t.Helper()
	root := t.TempDir()
	rec := &runner.Recorder{}
	c := &recipe.Context{
		Ref:      recipe.MustParseRef(ref),
		Settings: s,
		Options:  recipe.NewOptions(r.Metadata().Options),
		Folders: recipe.Folders{
			Source:     filepath.Join(root, "src"),
			Build:      filepath.Join(root, "build"),
			Generators: filepath.Join(root, "gen"),
			Package:    filepath.Join(root, "p"),
		},
		Deps:      map[string]*recipe.Dependency{},
		BuildDeps: map[string]*recipe.Dependency{},
		Env:       &recipe.Env{},
		Jobs:      4,
		Log:       zaptest.NewLogger(t),
		Runner:    rec,
	}
	if dp, ok := r.(recipe.DataProvider); ok {
		c.Data = dp.Data()
	}
	return c, rec
}

// AddDep adds a host dependency installed at folder with the default
// package info.
func AddDep(c *recipe.Context, ref, folder string) *recipe.Dependency {
	d := &recipe.Dependency{
		Ref:           recipe.MustParseRef(ref),
		PackageFolder: folder,
		Info:          recipe.NewPackageInfo(),
	}
	c.Deps[d.Ref.Name] = d
	return d
}

// AddToolDep adds a tool dependency.
func AddToolDep(c *recipe.Context, ref, folder string, info *recipe.PackageInfo) *recipe.Dependency {
	if info == nil {
		info = recipe.NewPackageInfo()
	}
	d := &recipe.Dependency{
		Ref:           recipe.MustParseRef(ref),
		PackageFolder: folder,
		Info:          info,
		Build:         true,
	}
	c.BuildDeps[d.Ref.Name] = d
	return d
}
