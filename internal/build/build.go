// Package build creates packages from recipes: it resolves the
// dependency graph, computes package IDs and runs the recipe hooks of
// every package not yet in the workspace cache, requirements first.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/goplus/llarhub/internal/profile"
	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/pkgs/runner"
	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
	"github.com/rogpeppe/go-internal/lockedfile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config configures a Builder.
type Config struct {
	// Home is the packages directory; see the layout in cache.go.
	Home    string
	Profile *profile.Profile
	// Lookup finds recipes by name. It defaults to recipes.Lookup.
	Lookup func(name string) (recipe.Recipe, error)
	Runner runner.Runner
	Log    *zap.Logger
	// Parallel bounds how many packages of the same depth build at
	// once. It defaults to 1.
	Parallel int
	// DryRun skips retrieving sources and recording builds in the
	// cache; the hooks still run and send their commands to Runner.
	DryRun bool
	Stdout io.Writer
	Stderr io.Writer
}

type Builder struct {
	home     string
	prof     *profile.Profile
	lookup   func(name string) (recipe.Recipe, error)
	runner   runner.Runner
	log      *zap.Logger
	parallel int
	dryRun   bool
	stdout   io.Writer
	stderr   io.Writer
}

// Package is a resolved package and, once built, its package info.
type Package struct {
	Ref      recipe.Ref
	ID       string
	Folder   string
	Settings recipe.Settings
	Options  *recipe.Options
	Info     *recipe.PackageInfo
	// Prebuilt is set for requirements taken from the profile.
	Prebuilt bool
	// Cached is set when the package was found in the workspace.
	Cached bool
}

func NewBuilder(cfg Config) *Builder {
	b := &Builder{
		home:     cfg.Home,
		prof:     cfg.Profile,
		lookup:   cfg.Lookup,
		runner:   cfg.Runner,
		log:      cfg.Log,
		parallel: cfg.Parallel,
		dryRun:   cfg.DryRun,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
	}
	if b.prof == nil {
		b.prof = &profile.Profile{}
	}
	if b.lookup == nil {
		b.lookup = recipes.Lookup
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.parallel <= 0 {
		b.parallel = 1
	}
	return b
}

// Create builds ref and its requirements. options override the
// profile's options of ref itself.
func (b *Builder) Create(ctx context.Context, ref recipe.Ref, options map[string]string) (*Package, error) {
	g := newGraph(b)
	root, err := g.resolve(ref, false, options)
	if err != nil {
		return nil, err
	}
	if err := b.build(ctx, g); err != nil {
		return nil, err
	}
	return root.pkg, nil
}

// Test creates ref, then builds and runs the recipe's test project
// against it in <package root>/test.
func (b *Builder) Test(ctx context.Context, ref recipe.Ref, options map[string]string) (*Package, error) {
	g := newGraph(b)
	root, err := g.resolve(ref, false, options)
	if err != nil {
		return nil, err
	}
	tester, ok := root.recipe.(recipe.Tester)
	if !ok {
		return nil, fmt.Errorf("%s: recipe has no test", ref)
	}
	if err := b.build(ctx, g); err != nil {
		return nil, err
	}

	dir := filepath.Join(filepath.Dir(root.pkg.Folder), "test")
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	c := &recipe.Context{
		Ref:           recipe.Ref{Name: ref.Name + "-test", Version: ref.Version},
		Settings:      b.prof.Settings,
		SettingsBuild: b.prof.BuildSettings(),
		Options:       recipe.NewOptions(nil),
		Folders: recipe.Folders{
			Source:     filepath.Join(dir, "src"),
			Build:      filepath.Join(dir, "build"),
			Generators: filepath.Join(dir, "gen"),
		},
		Deps:      map[string]*recipe.Dependency{},
		BuildDeps: map[string]*recipe.Dependency{},
		Env:       b.prof.Env(),
		DryRun:    b.dryRun,
		Jobs:      b.prof.Jobs,
		Log:       b.log,
		Runner:    b.runner,
		Stdout:    b.stdout,
		Stderr:    b.stderr,
	}
	closure := root.hostClosure()
	for _, d := range closure {
		c.Deps[d.pkg.Ref.Name] = d.dependency(false)
	}
	var pkg *recipe.Dependency
	if root.recipe.Metadata().PackageType == recipe.Application {
		pkg = root.dependency(true)
		c.BuildDeps[ref.Name] = pkg
		buildsys.UseDependency(c.Env, pkg, runtime.GOOS)
	} else {
		pkg = root.dependency(false)
		c.Deps[ref.Name] = pkg
	}
	c.Runtime = runtimeEnv(c.Env, append(closure, root))
	for _, d := range []string{c.Folders.Source, c.Folders.Build, c.Folders.Generators} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	b.log.Info("testing package", zap.Stringer("ref", ref), zap.String("package_id", root.pkg.ID))
	if err := tester.Test(ctx, c, pkg); err != nil {
		return nil, fmt.Errorf("%s: test: %w", ref, err)
	}
	return root.pkg, nil
}

// Info resolves ref without building anything. The package info comes
// from the cache when ref was built, from the PackageInfo hook
// otherwise.
func (b *Builder) Info(ctx context.Context, ref recipe.Ref, options map[string]string) (*Package, error) {
	g := newGraph(b)
	root, err := g.resolve(ref, false, options)
	if err != nil {
		return nil, err
	}
	entry, err := b.lookupCache(ref, root.pkg.ID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		root.pkg.Info = entry.Info
		root.pkg.Cached = true
		return root.pkg, nil
	}
	root.pkg.Info = packageInfo(root)
	return root.pkg, nil
}

// build builds the graph level by level. Packages of one level do not
// depend on each other.
func (b *Builder) build(ctx context.Context, g *graph) error {
	for _, level := range g.levels() {
		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(b.parallel)
		for _, n := range level {
			eg.Go(func() error {
				return b.buildNode(ctx, n)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// wire exposes the built requirements of n to its hooks.
func (b *Builder) wire(n *node) {
	c := n.ctx
	for _, d := range n.hostClosure() {
		c.Deps[d.pkg.Ref.Name] = d.dependency(false)
	}
	for _, t := range n.tools {
		dep := t.dependency(true)
		c.BuildDeps[t.pkg.Ref.Name] = dep
		buildsys.UseDependency(c.Env, dep, runtime.GOOS)
		// tools run during the build and need their own libraries
		if !t.pkg.Prebuilt {
			buildsys.UseRuntime(c.Env, dep, runtime.GOOS)
		}
	}
	c.Runtime = runtimeEnv(c.Env, n.hostClosure())
}

// runtimeEnv returns env extended with the runtime paths of nodes.
// Prebuilt packages live in system prefixes the loader already knows.
func runtimeEnv(env *recipe.Env, nodes []*node) *recipe.Env {
	rt := env.Clone()
	for _, d := range nodes {
		if !d.pkg.Prebuilt {
			buildsys.UseRuntime(rt, d.dependency(false), runtime.GOOS)
		}
	}
	return rt
}

func (b *Builder) buildNode(ctx context.Context, n *node) error {
	if n.pkg.Prebuilt {
		return nil
	}
	ref, id := n.pkg.Ref, n.pkg.ID
	log := b.log.With(zap.Stringer("ref", ref), zap.String("package_id", id))
	c := n.ctx
	b.wire(n)

	root := filepath.Dir(c.Folders.Package)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(root, ".lock")).Lock()
	if err != nil {
		return err
	}
	defer unlock()

	// Double-check cache after acquiring lock (another process may have built it)
	entry, err := b.lookupCache(ref, id)
	if err != nil {
		return err
	}
	if entry != nil {
		if _, err := os.Stat(c.Folders.Package); err == nil {
			log.Info("package cached")
			n.pkg.Info = entry.Info
			n.pkg.Cached = true
			return nil
		}
	}

	if h, ok := n.recipe.(recipe.BuildValidator); ok {
		if err := h.ValidateBuild(c); err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
	}
	log.Info("building package")
	start := time.Now()
	stale := []string{c.Folders.Build, c.Folders.Generators, c.Folders.Package}
	if !b.dryRun {
		stale = append(stale, c.Folders.Source)
	}
	for _, d := range stale {
		if err := os.RemoveAll(d); err != nil {
			return err
		}
	}
	for _, d := range []string{c.Folders.Source, c.Folders.Build, c.Folders.Generators, c.Folders.Package} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"source", func() error {
			if h, ok := n.recipe.(recipe.Sourcer); ok && !b.dryRun {
				return h.Source(ctx, c)
			}
			return nil
		}},
		{"generate", func() error {
			if h, ok := n.recipe.(recipe.Generator); ok {
				return h.Generate(ctx, c)
			}
			return nil
		}},
		{"build", func() error {
			if h, ok := n.recipe.(recipe.Builder); ok {
				return h.Build(ctx, c)
			}
			return nil
		}},
		{"package", func() error {
			if h, ok := n.recipe.(recipe.Packager); ok {
				return h.Package(ctx, c)
			}
			return nil
		}},
	}
	for _, step := range steps {
		log.Debug("running " + step.name)
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %s: %w", ref, step.name, err)
		}
	}
	n.pkg.Info = packageInfo(n)
	log.Info("package created", zap.Duration("elapsed", time.Since(start)))

	if b.dryRun {
		return nil
	}
	return b.recordBuild(ref, id, &buildEntry{
		Settings:  c.Settings.String(),
		Options:   c.Options.String(),
		Info:      n.pkg.Info,
		BuildTime: time.Now(),
	})
}

func packageInfo(n *node) *recipe.PackageInfo {
	info := recipe.NewPackageInfo()
	if h, ok := n.recipe.(recipe.PackageInfoer); ok {
		h.PackageInfo(n.ctx, info)
	}
	return info
}
