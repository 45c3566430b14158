package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goplus/llarhub/internal/profile"
	"github.com/goplus/llarhub/pkgs/runner"
	"github.com/goplus/llarhub/recipe"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stub is a recipe whose hooks record commands instead of building.
type stub struct {
	name       string
	requires   []string
	tools      []string
	options    map[string]recipe.OptionDef
	headerOnly bool
	invalid    string
	buildEnv   map[string]string
}

func (s *stub) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        s.name,
		PackageType: recipe.Library,
		Settings:    []string{"os", "arch", "compiler", "build_type"},
		Options:     s.options,
	}
}

func (s *stub) Requirements(c *recipe.Context, reqs *recipe.Requirements) {
	for _, r := range s.requires {
		reqs.Require(r)
	}
}

func (s *stub) BuildRequirements(c *recipe.Context, reqs *recipe.Requirements) {
	for _, r := range s.tools {
		reqs.ToolRequire(r)
	}
}

func (s *stub) Validate(c *recipe.Context) error {
	if s.invalid != "" {
		return recipe.InvalidConfiguration("%s", s.invalid)
	}
	return nil
}

func (s *stub) PackageID(info *recipe.IDInfo) {
	if s.headerOnly {
		info.Clear()
	}
}

func (s *stub) Source(ctx context.Context, c *recipe.Context) error {
	return c.Run(ctx, c.Folders.Source, "fetch", s.name)
}

func (s *stub) Build(ctx context.Context, c *recipe.Context) error {
	return c.Run(ctx, c.Folders.Build, "make", s.name)
}

func (s *stub) Package(ctx context.Context, c *recipe.Context) error {
	lib := filepath.Join(c.Folders.Package, "lib")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(lib, "lib"+s.name+".a"), nil, 0o644)
}

func (s *stub) PackageInfo(c *recipe.Context, info *recipe.PackageInfo) {
	info.CppInfo.Libs = []string{s.name}
	for k, v := range s.buildEnv {
		info.BuildEnv.Define(k, v)
	}
}

// testedStub adds a Test hook.
type testedStub struct {
	*stub
	test func(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error
}

func (s *testedStub) Test(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error {
	return s.test(ctx, c, pkg)
}

func lookupIn(rs ...recipe.Recipe) func(string) (recipe.Recipe, error) {
	m := map[string]recipe.Recipe{}
	for _, r := range rs {
		m[r.Metadata().Name] = r
	}
	return func(name string) (recipe.Recipe, error) {
		if r, ok := m[name]; ok {
			return r, nil
		}
		return nil, fmt.Errorf("unknown recipe %q", name)
	}
}

func linuxProfile() *profile.Profile {
	return &profile.Profile{
		Settings: recipe.Settings{
			OS:        recipe.Linux,
			Arch:      "x86_64",
			BuildType: recipe.Release,
			Compiler:  recipe.Compiler{Name: "gcc", Version: "12"},
		},
		Packages: map[string]string{"zlib": "/usr"},
	}
}

func newBuilder(t *testing.T, prof *profile.Profile, rs ...recipe.Recipe) (*Builder, *runner.Recorder) {
	t.Helper()
	rec := &runner.Recorder{}
	b := NewBuilder(Config{
		Home:    t.TempDir(),
		Profile: prof,
		Lookup:  lookupIn(rs...),
		Runner:  rec,
		Log:     zaptest.NewLogger(t),
	})
	return b, rec
}

func ref(s string) recipe.Ref {
	return recipe.MustParseRef(s)
}

func TestCreateBuildsRequirementsFirst(t *testing.T) {
	tool := &stub{name: "tool", buildEnv: map[string]string{"TOOL": "/opt/tool/bin/tool"}}
	lib := &stub{name: "lib", requires: []string{"zlib/1.2.13"}}
	app := &stub{name: "app", requires: []string{"lib/1.0"}, tools: []string{"tool/2.0"}}
	b, rec := newBuilder(t, linuxProfile(), tool, lib, app)
	ctx := context.Background()

	pkg, err := b.Create(ctx, ref("app/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	// tool and the prebuilt zlib form the first level
	want := []string{"fetch tool", "make tool", "fetch lib", "make lib", "fetch app", "make app"}
	if diff := cmp.Diff(want, rec.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	cmds := rec.Cmds()
	if got := cmds[len(cmds)-1].Getenv("TOOL"); got != "/opt/tool/bin/tool" {
		t.Errorf("TOOL in the app build = %q, want the tool's build env", got)
	}
	if pkg.Cached || pkg.Info == nil || !cmp.Equal(pkg.Info.CppInfo.Libs, []string{"app"}) {
		t.Errorf("Create() = %+v", pkg)
	}
	wantFolder := filepath.Join(b.home, "app", "1.0", pkg.ID, "p")
	if pkg.Folder != wantFolder {
		t.Errorf("package folder = %s, want %s", pkg.Folder, wantFolder)
	}
	if _, err := os.Stat(filepath.Join(pkg.Folder, "lib", "libapp.a")); err != nil {
		t.Errorf("package not installed: %v", err)
	}

	before := len(rec.Lines())
	again, err := b.Create(ctx, ref("app/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached || again.ID != pkg.ID {
		t.Errorf("second Create() = %+v, want the cached package %s", again, pkg.ID)
	}
	if got := rec.Lines()[before:]; len(got) != 0 {
		t.Errorf("cached packages rebuilt: %q", got)
	}
	if diff := cmp.Diff([]string{"app"}, again.Info.CppInfo.Libs); diff != "" {
		t.Errorf("cached info mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateGraphErrors(t *testing.T) {
	tests := []struct {
		name    string
		recipes []recipe.Recipe
		ref     string
		want    string
	}{
		{
			name: "cycle",
			recipes: []recipe.Recipe{
				&stub{name: "a", requires: []string{"b/1.0"}},
				&stub{name: "b", requires: []string{"a/1.0"}},
			},
			ref:  "a/1.0",
			want: "dependency cycle: a -> b -> a",
		},
		{
			name: "conflict",
			recipes: []recipe.Recipe{
				&stub{name: "app", requires: []string{"lib/1.0", "mid/1.0"}},
				&stub{name: "mid", requires: []string{"lib/2.0"}},
				&stub{name: "lib"},
			},
			ref:  "app/1.0",
			want: "conflicting versions of lib: 1.0 and 2.0",
		},
		{
			name:    "missing recipe",
			recipes: []recipe.Recipe{&stub{name: "app", requires: []string{"gmp/6.2.1"}}},
			ref:     "app/1.0",
			want:    `gmp/6.2.1: unknown recipe "gmp"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rec := newBuilder(t, linuxProfile(), tt.recipes...)
			_, err := b.Create(context.Background(), ref(tt.ref), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Create() = %v, want error containing %q", err, tt.want)
			}
			if lines := rec.Lines(); len(lines) != 0 {
				t.Errorf("commands ran before the graph resolved: %q", lines)
			}
		})
	}
}

func TestToolContextIsSeparate(t *testing.T) {
	// the same name at two versions is fine across host and build contexts
	gen := &stub{name: "gen"}
	app := &stub{name: "app", requires: []string{"gen/1.0"}, tools: []string{"gen/2.0"}}
	b, rec := newBuilder(t, linuxProfile(), gen, app)
	if _, err := b.Create(context.Background(), ref("app/1.0"), nil); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.Lines()); got != 6 {
		t.Errorf("ran %d commands, want 6: %q", got, rec.Lines())
	}
}

func TestValidate(t *testing.T) {
	app := &stub{name: "app", invalid: "Windows builds aren't supported"}
	b, _ := newBuilder(t, linuxProfile(), app)
	_, err := b.Create(context.Background(), ref("app/1.0"), nil)
	if !recipe.IsInvalidConfiguration(err) {
		t.Errorf("Create() = %v, want invalid configuration", err)
	}
}

func TestOptions(t *testing.T) {
	lib := &stub{name: "lib", options: map[string]recipe.OptionDef{
		"shared": recipe.BoolOption(false),
		"fPIC":   recipe.BoolOption(true),
	}}
	prof := linuxProfile()
	prof.Options = map[string]string{
		"*:shared":   "True",
		"*:with_zip": "True",
		"lib:fPIC":   "False",
	}
	b, _ := newBuilder(t, prof, lib)
	ctx := context.Background()

	pkg, err := b.Info(ctx, ref("lib/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := pkg.Options.String(), "fPIC=False,shared=True"; got != want {
		t.Errorf("options = %q, want %q", got, want)
	}

	pkg2, err := b.Info(ctx, ref("lib/1.0"), map[string]string{"shared": "False"})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := pkg2.Options.String(), "fPIC=False,shared=False"; got != want {
		t.Errorf("overridden options = %q, want %q", got, want)
	}
	if pkg.ID == pkg2.ID {
		t.Error("different options share a package id")
	}

	if _, err := b.Info(ctx, ref("lib/1.0"), map[string]string{"with_zip": "True"}); err == nil {
		t.Error("undeclared option accepted")
	}
}

func TestProfileOptionTypo(t *testing.T) {
	lib := &stub{name: "lib", options: map[string]recipe.OptionDef{
		"with_python_bindings": recipe.BoolOption(false),
	}}
	prof := linuxProfile()
	prof.Options = map[string]string{"lib:with_pyhton_bindings": "True"}
	b, rec := newBuilder(t, prof, lib)
	_, err := b.Create(context.Background(), ref("lib/1.0"), nil)
	if err == nil || !strings.Contains(err.Error(), "with_pyhton_bindings") {
		t.Fatalf("Create error = %v, want the misspelled option named", err)
	}
	if len(rec.Lines()) != 0 {
		t.Errorf("commands ran for a rejected profile: %q", rec.Lines())
	}

	prof.Options = map[string]string{"lib:with_python_bindings": "maybe"}
	if _, err := b.Create(context.Background(), ref("lib/1.0"), nil); err == nil {
		t.Error("invalid profile option value accepted")
	}
}

func TestPackageID(t *testing.T) {
	headers := &stub{name: "headers", headerOnly: true, options: map[string]recipe.OptionDef{
		"shared": recipe.BoolOption(false),
	}}
	b, _ := newBuilder(t, linuxProfile(), headers)
	ctx := context.Background()

	a, err := b.Info(ctx, ref("headers/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	prof := linuxProfile()
	prof.Settings.BuildType = recipe.Debug
	b2, _ := newBuilder(t, prof, headers)
	c, err := b2.Info(ctx, ref("headers/1.0"), map[string]string{"shared": "True"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != c.ID {
		t.Errorf("header-only ids differ: %s and %s", a.ID, c.ID)
	}
	if len(a.ID) != 40 {
		t.Errorf("package id %q is not a sha1", a.ID)
	}
}

func TestPackageIDDependsOnRequirements(t *testing.T) {
	info := func(reqs ...string) *recipe.IDInfo {
		i := &recipe.IDInfo{Settings: recipe.Settings{OS: recipe.Linux}, Options: recipe.NewOptions(nil)}
		for _, r := range reqs {
			i.Requires = append(i.Requires, ref(r))
		}
		return i
	}
	if packageID(info("a/1.0", "b/1.0")) != packageID(info("b/1.0", "a/1.0")) {
		t.Error("package id depends on requirement order")
	}
	if packageID(info("a/1.0")) == packageID(info("a/1.1")) {
		t.Error("package id ignores requirement versions")
	}
}

func TestInfo(t *testing.T) {
	lib := &stub{name: "lib"}
	b, rec := newBuilder(t, linuxProfile(), lib)
	ctx := context.Background()

	pkg, err := b.Info(ctx, ref("lib/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Cached || !cmp.Equal(pkg.Info.CppInfo.Libs, []string{"lib"}) {
		t.Errorf("Info() before Create = %+v", pkg)
	}
	if lines := rec.Lines(); len(lines) != 0 {
		t.Errorf("Info() ran %q", lines)
	}
	if _, err := b.Create(ctx, ref("lib/1.0"), nil); err != nil {
		t.Fatal(err)
	}
	pkg, err = b.Info(ctx, ref("lib/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !pkg.Cached {
		t.Error("Info() after Create is not cached")
	}
}

func TestBuildFailure(t *testing.T) {
	lib := &stub{name: "lib"}
	app := &stub{name: "app", requires: []string{"lib/1.0"}}
	b, rec := newBuilder(t, linuxProfile(), lib, app)
	rec.Hook = func(c *runner.Cmd) error {
		if c.String() == "make lib" {
			return errors.New("exit status 2")
		}
		return nil
	}
	_, err := b.Create(context.Background(), ref("app/1.0"), nil)
	if err == nil || !strings.Contains(err.Error(), "lib/1.0: build: exit status 2") {
		t.Fatalf("Create() = %v", err)
	}
	if diff := cmp.Diff([]string{"fetch lib", "make lib"}, rec.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	cache, err := b.loadCache("lib")
	if err != nil {
		t.Fatal(err)
	}
	if len(cache.Cache) != 0 {
		t.Errorf("failed build cached: %+v", cache.Cache)
	}
}

// buildChecked counts ValidateBuild calls and fails them on request.
type buildChecked struct {
	*stub
	calls  int
	reject string
}

func (r *buildChecked) ValidateBuild(c *recipe.Context) error {
	r.calls++
	if r.reject != "" {
		return recipe.InvalidConfiguration("%s", r.reject)
	}
	return nil
}

func TestValidateBuildOnlyForUncached(t *testing.T) {
	lib := &buildChecked{stub: &stub{name: "lib"}}
	b, rec := newBuilder(t, linuxProfile(), lib)
	if _, err := b.Create(context.Background(), ref("lib/1.0"), nil); err != nil {
		t.Fatal(err)
	}
	if lib.calls != 1 {
		t.Fatalf("ValidateBuild calls after the first build = %d, want 1", lib.calls)
	}

	lib.reject = "cannot build here"
	pkg, err := b.Create(context.Background(), ref("lib/1.0"), nil)
	if err != nil {
		t.Fatalf("cached Create() = %v", err)
	}
	if !pkg.Cached || lib.calls != 1 {
		t.Errorf("cached Create() = %+v with %d ValidateBuild calls, want cached and 1", pkg, lib.calls)
	}
	if diff := cmp.Diff([]string{"fetch lib", "make lib"}, rec.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	other := &buildChecked{stub: &stub{name: "lib"}, reject: "cannot build here"}
	b2, rec2 := newBuilder(t, linuxProfile(), other)
	_, err = b2.Create(context.Background(), ref("lib/1.0"), nil)
	if err == nil || !strings.Contains(err.Error(), "cannot build here") {
		t.Fatalf("uncached Create() = %v, want the ValidateBuild error", err)
	}
	if got := rec2.Lines(); len(got) != 0 {
		t.Errorf("commands ran after ValidateBuild failed: %q", got)
	}
}

func TestDryRun(t *testing.T) {
	lib := &stub{name: "lib"}
	rec := &runner.Recorder{}
	b := NewBuilder(Config{
		Home:    t.TempDir(),
		Profile: linuxProfile(),
		Lookup:  lookupIn(lib),
		Runner:  rec,
		DryRun:  true,
	})
	if _, err := b.Create(context.Background(), ref("lib/1.0"), nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"make lib"}, rec.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(b.home, "lib", cacheFile)); !os.IsNotExist(err) {
		t.Errorf("dry run wrote the cache: %v", err)
	}
}

func TestParallelLevels(t *testing.T) {
	a := &stub{name: "a"}
	c := &stub{name: "c"}
	app := &stub{name: "app", requires: []string{"a/1.0", "c/1.0"}}
	rec := &runner.Recorder{}
	b := NewBuilder(Config{
		Home:     t.TempDir(),
		Profile:  linuxProfile(),
		Lookup:   lookupIn(a, c, app),
		Runner:   rec,
		Parallel: 2,
	})

	var mu sync.Mutex
	arrived := 0
	both := make(chan struct{})
	rec.Hook = func(cmd *runner.Cmd) error {
		if cmd.Name != "make" || cmd.Args[0] == "app" {
			return nil
		}
		mu.Lock()
		arrived++
		if arrived == 2 {
			close(both)
		}
		mu.Unlock()
		select {
		case <-both:
			return nil
		case <-time.After(10 * time.Second):
			return errors.New("a and c were not built concurrently")
		}
	}
	if _, err := b.Create(context.Background(), ref("app/1.0"), nil); err != nil {
		t.Fatal(err)
	}
	lines := rec.Lines()
	if got := lines[len(lines)-1]; got != "make app" {
		t.Errorf("last command = %q, want make app", got)
	}
}

func TestTest(t *testing.T) {
	t.Setenv("LD_LIBRARY_PATH", "")
	lib := &stub{name: "lib", requires: []string{"zlib/1.2.13"}, options: map[string]recipe.OptionDef{
		"shared": recipe.BoolOption(true),
	}}
	var seen *recipe.Context
	tested := &testedStub{stub: lib, test: func(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error {
		seen = c
		if pkg.Info == nil || !pkg.Options.Bool("shared") {
			return fmt.Errorf("package %+v lacks its info or options", pkg)
		}
		return c.Run(ctx, c.Folders.Build, "ctest")
	}}
	b, rec := newBuilder(t, linuxProfile(), tested)
	pkg, err := b.Test(context.Background(), ref("lib/1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"fetch lib", "make lib", "ctest"}, rec.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if seen.Ref.String() != "lib-test/1.0" {
		t.Errorf("consumer ref = %s", seen.Ref)
	}
	if d := seen.Deps["lib"]; d == nil || d.PackageFolder != pkg.Folder {
		t.Errorf("consumer deps = %+v, want lib at %s", seen.Deps, pkg.Folder)
	}
	if d := seen.Deps["zlib"]; d == nil || d.PackageFolder != "/usr" {
		t.Errorf("transitive zlib not visible to the test: %+v", seen.Deps)
	}
	if goruntime.GOOS == "linux" {
		loader, _ := seen.Runtime.Get("LD_LIBRARY_PATH")
		if !strings.HasPrefix(loader, filepath.Join(pkg.Folder, "lib")) {
			t.Errorf("test LD_LIBRARY_PATH = %q, want %s first", loader, filepath.Join(pkg.Folder, "lib"))
		}
		if strings.Contains(loader, "/usr/lib") {
			t.Errorf("prebuilt zlib on the test LD_LIBRARY_PATH: %q", loader)
		}
	}
	wantBuild := filepath.Join(filepath.Dir(pkg.Folder), "test", "build")
	if seen.Folders.Build != wantBuild {
		t.Errorf("test build folder = %s, want %s", seen.Folders.Build, wantBuild)
	}

	_, err = b.Test(context.Background(), ref("zlib/1.2.13"), nil)
	if err == nil {
		t.Error("Test() of a prebuilt package succeeded")
	}
}
