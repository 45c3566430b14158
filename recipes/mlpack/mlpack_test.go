package mlpack

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/llarhub/pkgs/buildsys/cmake"
	"github.com/goplus/llarhub/pkgs/runner"
	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipe/recipetest"
	"github.com/google/go-cmp/cmp"
)

const upstreamLists = `cmake_minimum_required(VERSION 3.6)
project(mlpack C CXX)
find_package(Armadillo "${ARMADILLO_VERSION}" REQUIRED)
find_package(Ensmallen "${ENSMALLEN_VERSION}" REQUIRED)
find_package(cereal "${CEREAL_VERSION}" REQUIRED)
find_package(StbImage)
`

func newMlpack(t *testing.T, s recipe.Settings) (*Recipe, *recipe.Context, *runner.Recorder) {
	t.Helper()
	r := New().(*Recipe)
	c, rec := recipetest.NewContext(t, r, "mlpack/4.0.1", s)
	recipetest.AddDep(c, "armadillo/12.2.0", "/opt/armadillo")
	recipetest.AddDep(c, "ensmallen/2.19.1", "/opt/ensmallen")
	recipetest.AddDep(c, "cereal/1.3.2", "/opt/cereal")
	recipetest.AddDep(c, "stb/cci.20220909", "/opt/stb")
	return r, c, rec
}

func TestOptionsAndPackageID(t *testing.T) {
	r, c, _ := newMlpack(t, recipetest.LinuxGCC)
	want := "fPIC=True,shared=False,with_go_bindings=False,with_julia_bindings=False," +
		"with_openmp=False,with_python_bindings=False,with_r_bindings=False"
	if got := c.Options.String(); got != want {
		t.Errorf("default options = %q, want %q", got, want)
	}
	if err := c.Options.Set("with_cuda", "True"); err == nil {
		t.Error("undeclared option accepted")
	}

	info := &recipe.IDInfo{Settings: c.Settings, Options: c.Options.Clone()}
	r.PackageID(info)
	if !info.Cleared() || info.Settings != (recipe.Settings{}) {
		t.Errorf("package id not cleared: %+v", info)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		compiler, version string
		invalid           bool
	}{
		{"gcc", "4.9", true},
		{"gcc", "5", false},
		{"gcc", "12", false},
		{"clang", "3.4", true},
		{"clang", "3.5", false},
		{"apple-clang", "10", false},
	}
	for _, tt := range tests {
		s := recipetest.LinuxGCC
		s.Compiler = recipe.Compiler{Name: tt.compiler, Version: tt.version}
		r, c, _ := newMlpack(t, s)
		err := r.Validate(c)
		if got := recipe.IsInvalidConfiguration(err); got != tt.invalid {
			t.Errorf("Validate(%s %s) = %v, want invalid %v", tt.compiler, tt.version, err, tt.invalid)
		}
	}
}

func TestGenerate(t *testing.T) {
	s := recipetest.LinuxGCC
	s.BuildType = recipe.Debug
	r, c, _ := newMlpack(t, s)
	if err := c.Options.Set("with_python_bindings", "True"); err != nil {
		t.Fatal(err)
	}
	if err := r.Generate(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	gen := c.Folders.Generators
	for _, f := range []string{"ArmadilloConfig.cmake", "ensmallenConfig.cmake", "cerealConfig.cmake", "stbConfig.cmake"} {
		if _, err := os.Stat(filepath.Join(gen, f)); err != nil {
			t.Errorf("%s not generated: %v", f, err)
		}
	}
	arma, err := os.ReadFile(filepath.Join(gen, "ArmadilloConfig.cmake"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(arma), "add_library(Armadillo::Armadillo INTERFACE IMPORTED)") {
		t.Errorf("ArmadilloConfig.cmake does not declare Armadillo::Armadillo:\n%s", arma)
	}

	tc, err := os.ReadFile(filepath.Join(gen, cmake.ToolchainFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`set(DEBUG "ON" CACHE BOOL`,
		`set(DOWNLOAD_DEPENDENCIES "OFF" CACHE BOOL`,
		`set(BUILD_PYTHON_BINDINGS "ON" CACHE BOOL`,
		`set(BUILD_JULIA_BINDINGS "OFF" CACHE BOOL`,
		`set(USE_OPENMP "OFF" CACHE BOOL`,
	} {
		if !strings.Contains(string(tc), want) {
			t.Errorf("toolchain missing %q:\n%s", want, tc)
		}
	}
}

func TestBuildAndPackage(t *testing.T) {
	r, c, rec := newMlpack(t, recipetest.LinuxGCC)
	src, pkg := c.Folders.Source, c.Folders.Package
	writeFile(t, filepath.Join(src, "CMakeLists.txt"), upstreamLists)
	writeFile(t, filepath.Join(src, "LICENSE.txt"), "BSD")
	ctx := context.Background()

	if err := r.Generate(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := r.Build(ctx, c); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(src, "CMakeLists.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := `cmake_minimum_required(VERSION 3.6)
project(mlpack C CXX)
find_package(Armadillo REQUIRED)
find_package(Ensmallen REQUIRED)
find_package(cereal REQUIRED)
find_package(stb)
`
	if diff := cmp.Diff(want, string(b)); diff != "" {
		t.Errorf("patched CMakeLists.txt mismatch (-want +got):\n%s", diff)
	}

	writeFile(t, filepath.Join(pkg, "include", "mlpack.hpp"), "")
	writeFile(t, filepath.Join(pkg, "lib", "cmake", "mlpack", "mlpack-config.cmake"), "")
	writeFile(t, filepath.Join(pkg, "share", "doc", "README"), "")
	if err := r.Package(ctx, c); err != nil {
		t.Fatal(err)
	}
	lines := rec.Lines()
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "cmake -S "+src) || lines[1] != "cmake --install "+c.Folders.Build+" --config Release --prefix "+pkg {
		t.Errorf("commands = %q", lines)
	}
	for _, gone := range []string{"lib", "share"} {
		if _, err := os.Stat(filepath.Join(pkg, gone)); !os.IsNotExist(err) {
			t.Errorf("%s still packaged", gone)
		}
	}
	for _, kept := range []string{filepath.Join("include", "mlpack.hpp"), filepath.Join("licenses", "LICENSE.txt")} {
		if _, err := os.Stat(filepath.Join(pkg, kept)); err != nil {
			t.Errorf("%s not packaged: %v", kept, err)
		}
	}
}

func TestBuildFailsOnUnexpectedUpstream(t *testing.T) {
	r, c, _ := newMlpack(t, recipetest.LinuxGCC)
	writeFile(t, filepath.Join(c.Folders.Source, "CMakeLists.txt"), "project(mlpack)\n")
	if err := r.Build(context.Background(), c); err == nil {
		t.Fatal("Build succeeded although the version pins were not found")
	}
}

func TestPackageInfo(t *testing.T) {
	r, c, _ := newMlpack(t, recipetest.LinuxGCC)
	info := recipe.NewPackageInfo()
	r.PackageInfo(c, info)
	ci := info.CppInfo
	if len(ci.BinDirs) != 0 || len(ci.LibDirs) != 0 {
		t.Errorf("header-only package has bin dirs %v and lib dirs %v", ci.BinDirs, ci.LibDirs)
	}
	if got := ci.Property(recipe.CMakeFileName); got != "mlpack" {
		t.Errorf("cmake file name = %q, want mlpack", got)
	}
	if got := ci.Property(recipe.CMakeTargetName); got != "mlpack::mlpack" {
		t.Errorf("cmake target = %q, want mlpack::mlpack", got)
	}
}

func TestTestPackage(t *testing.T) {
	r := New().(*Recipe)
	c, rec := recipetest.NewContext(t, r, "mlpack-test/4.0.1", recipetest.LinuxGCC)
	info := recipe.NewPackageInfo()
	r.PackageInfo(c, info)
	c.Deps["mlpack"] = &recipe.Dependency{Ref: recipe.MustParseRef("mlpack/4.0.1"), PackageFolder: "/opt/mlpack", Info: info}
	recipetest.AddDep(c, "armadillo/12.2.0", "/opt/armadillo")

	if err := r.Test(context.Background(), c, c.Deps["mlpack"]); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"CMakeLists.txt", filepath.Join("src", "example.cpp")} {
		if _, err := os.Stat(filepath.Join(c.Folders.Source, f)); err != nil {
			t.Errorf("test source %s not written: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(c.Folders.Generators, "mlpackConfig.cmake")); err != nil {
		t.Errorf("mlpackConfig.cmake not generated: %v", err)
	}
	lines := rec.Lines()
	if len(lines) != 3 {
		t.Fatalf("commands = %q, want configure, build and ctest", lines)
	}
	if want := "ctest --output-on-failure -C Release"; lines[2] != want {
		t.Errorf("test command = %q, want %q", lines[2], want)
	}
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
