// Package mlpack is the recipe of mlpack, a header-only C++ machine
// learning library. Its CMake build only installs headers, so every
// configuration shares one package ID.
package mlpack

import (
	"context"
	"embed"
	"path/filepath"

	"github.com/goplus/llarhub/pkgs/buildsys/cmake"
	"github.com/goplus/llarhub/pkgs/files"
	"github.com/goplus/llarhub/pkgs/version"
	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
)

//go:embed data.yml
var dataYML []byte

//go:embed test_package
var testPackage embed.FS

var data = recipe.MustParseData(dataYML)

func init() {
	recipes.Register("mlpack", New)
}

type Recipe struct{}

func New() recipe.Recipe {
	return &Recipe{}
}

func (r *Recipe) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        "mlpack",
		Description: "mlpack is an intuitive, fast, and flexible header-only C++ machine learning library with bindings to other languages.",
		License:     "BSD-3-Clause",
		Homepage:    "https://github.com/mlpack/mlpack",
		URL:         recipes.RepoURL,
		Topics:      []string{"machine", "learning", "header-only"},
		PackageType: recipe.HeaderLibrary,
		Settings:    []string{"os", "compiler", "build_type", "arch"},
		Options: map[string]recipe.OptionDef{
			"shared":               recipe.BoolOption(false),
			"fPIC":                 recipe.BoolOption(true),
			"with_python_bindings": recipe.BoolOption(false),
			"with_julia_bindings":  recipe.BoolOption(false),
			"with_go_bindings":     recipe.BoolOption(false),
			"with_r_bindings":      recipe.BoolOption(false),
			"with_openmp":          recipe.BoolOption(false),
		},
	}
}

func (r *Recipe) Data() *recipe.Data {
	return data
}

func (r *Recipe) PackageID(info *recipe.IDInfo) {
	info.Clear()
}

func (r *Recipe) Requirements(c *recipe.Context, reqs *recipe.Requirements) {
	reqs.Require("armadillo/12.2.0")
	reqs.Require("ensmallen/2.19.1")
	reqs.Require("cereal/1.3.2")
	reqs.Require("stb/cci.20220909")
}

var minimumCompilerVersion = map[string]string{
	"gcc":   "5",
	"clang": "3.5",
}

// Validate rejects compilers too old for C++14.
func (r *Recipe) Validate(c *recipe.Context) error {
	cc := c.Settings.Compiler
	min, ok := minimumCompilerVersion[cc.Name]
	if !ok || cc.Version == "" {
		return nil
	}
	if version.Compare(cc.Version, min) < 0 {
		return recipe.InvalidConfiguration("%s version %s is too old! %s or newer is required.", cc.Name, cc.Version, min)
	}
	return nil
}

func (r *Recipe) Source(ctx context.Context, c *recipe.Context) error {
	src, err := c.Data.Source(c.Version())
	if err != nil {
		return err
	}
	return files.Get(ctx, c, src, c.Folders.Source)
}

// bindings maps options to the CMake switches of mlpack's build.
var bindings = []struct{ option, variable string }{
	{"with_python_bindings", "BUILD_PYTHON_BINDINGS"},
	{"with_julia_bindings", "BUILD_JULIA_BINDINGS"},
	{"with_go_bindings", "BUILD_GO_BINDINGS"},
	{"with_r_bindings", "BUILD_R_BINDINGS"},
	{"with_openmp", "USE_OPENMP"},
}

func (r *Recipe) Generate(ctx context.Context, c *recipe.Context) error {
	if err := generateDeps(c); err != nil {
		return err
	}
	tc := cmake.NewToolchain(c)
	tc.Variables["DEBUG"] = c.Settings.BuildType == recipe.Debug
	tc.Variables["DOWNLOAD_DEPENDENCIES"] = false
	for _, b := range bindings {
		tc.Variables[b.variable] = c.Options.Bool(b.option)
	}
	return tc.Generate()
}

// generateDeps writes config files under the names mlpack's
// find_package calls use.
func generateDeps(c *recipe.Context) error {
	deps := cmake.NewDeps(c)
	deps.SetProperty("armadillo", recipe.CMakeFileName, "Armadillo")
	deps.SetProperty("armadillo", recipe.CMakeTargetName, "Armadillo::Armadillo")
	return deps.Generate()
}

// The minimum versions pinned by mlpack's CMakeLists.txt are dropped so
// the required packages are used as they are.
var patches = []struct{ search, replace string }{
	{`find_package(Armadillo "${ARMADILLO_VERSION}" REQUIRED)`, "find_package(Armadillo REQUIRED)"},
	{`find_package(Ensmallen "${ENSMALLEN_VERSION}" REQUIRED)`, "find_package(Ensmallen REQUIRED)"},
	{`find_package(cereal "${CEREAL_VERSION}" REQUIRED)`, "find_package(cereal REQUIRED)"},
	{"find_package(StbImage)", "find_package(stb)"},
}

func (r *Recipe) Build(ctx context.Context, c *recipe.Context) error {
	lists := filepath.Join(c.Folders.Source, "CMakeLists.txt")
	for _, p := range patches {
		if err := files.ReplaceInFile(c, lists, p.search, p.replace, true); err != nil {
			return err
		}
	}
	m, err := cmake.New(c)
	if err != nil {
		return err
	}
	return m.Configure(ctx)
}

func (r *Recipe) Package(ctx context.Context, c *recipe.Context) error {
	m, err := cmake.New(c)
	if err != nil {
		return err
	}
	if err := m.Install(ctx); err != nil {
		return err
	}
	pkg := c.Folders.Package
	if _, err := files.Copy("LICENSE.txt", c.Folders.Source, filepath.Join(pkg, "licenses"), false); err != nil {
		return err
	}
	if err := files.Rmdir(filepath.Join(pkg, "lib")); err != nil {
		return err
	}
	return files.Rmdir(filepath.Join(pkg, "share"))
}

func (r *Recipe) PackageInfo(c *recipe.Context, info *recipe.PackageInfo) {
	ci := info.CppInfo
	ci.BinDirs = nil
	ci.LibDirs = nil
	ci.SetProperty(recipe.CMakeFileName, "mlpack")
	ci.SetProperty(recipe.CMakeTargetName, "mlpack::mlpack")
}

// Test builds a small random forest classifier against the package and
// runs it through ctest unless cross building.
func (r *Recipe) Test(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error {
	if err := files.WriteFS(testPackage, "test_package", c.Folders.Source); err != nil {
		return err
	}
	if err := generateDeps(c); err != nil {
		return err
	}
	if err := cmake.NewToolchain(c).Generate(); err != nil {
		return err
	}
	m, err := cmake.New(c)
	if err != nil {
		return err
	}
	m.InstallDir("")
	if err := m.Configure(ctx); err != nil {
		return err
	}
	if err := m.Build(ctx); err != nil {
		return err
	}
	if c.CrossBuilding() {
		return nil
	}
	return m.Test(ctx)
}
