// Package boost is the recipe of the Boost C++ libraries, built with b2
// or packaged as headers only.
package boost

import (
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/goplus/llarhub/pkgs/buildsys/cmake"
	"github.com/goplus/llarhub/pkgs/files"
	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
	"go.uber.org/zap"
)

//go:embed data.yml
var dataYML []byte

//go:embed test_package
var testPackage embed.FS

var data = recipe.MustParseData(dataYML)

func init() {
	recipes.Register("boost", New)
}

type Recipe struct{}

func New() recipe.Recipe {
	return &Recipe{}
}

func (r *Recipe) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        "boost",
		Description: "Boost provides free peer-reviewed portable C++ source libraries",
		License:     "BSL-1.0",
		Homepage:    "https://www.boost.org",
		URL:         recipes.RepoURL,
		Topics:      []string{"libraries", "cpp"},
		PackageType: recipe.Library,
		Settings:    []string{"os", "arch", "compiler", "build_type"},
		Options: map[string]recipe.OptionDef{
			"shared":      recipe.BoolOption(false),
			"header_only": recipe.BoolOption(false),
			"python":      recipe.BoolOption(false),
			"fPIC":        recipe.BoolOption(true),
		},
	}
}

func (r *Recipe) Data() *recipe.Data {
	return data
}

func (r *Recipe) Configure(c *recipe.Context) error {
	if c.Options.Bool("header_only") {
		c.Options.Remove("shared")
		c.Options.Remove("fPIC")
		c.Options.Remove("python")
		return nil
	}
	if c.Options.Bool("shared") {
		c.Options.Remove("fPIC")
	}
	return nil
}

// PackageID maps every header-only configuration to one package.
func (r *Recipe) PackageID(info *recipe.IDInfo) {
	if info.Options.Bool("header_only") {
		info.Clear()
	}
}

func (r *Recipe) Validate(c *recipe.Context) error {
	if c.Options.Bool("header_only") {
		return nil
	}
	if c.Settings.OS == recipe.Windows {
		return recipe.InvalidConfiguration("building boost on Windows needs bootstrap.bat, only header_only=True is supported")
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

// B2Args returns the arguments of the b2 install run for the context's
// settings and options.
func B2Args(c *recipe.Context) []string {
	link := "static"
	if c.Options.Bool("shared") {
		link = "shared"
	}
	variant := "release"
	if c.Settings.BuildType == recipe.Debug {
		variant = "debug"
	}
	args := []string{
		"install",
		"--prefix=" + c.Folders.Package,
		"--build-dir=" + c.Folders.Build,
		"-j" + strconv.Itoa(c.Parallel()),
		"link=" + link,
		"variant=" + variant,
		"threading=multi",
	}
	if c.Options.Bool("fPIC") {
		args = append(args, "cxxflags=-fPIC", "cflags=-fPIC")
	}
	if !c.Options.Bool("python") {
		args = append(args, "--without-python")
	}
	return args
}

// Build bootstraps b2 and installs the compiled libraries straight into
// the package folder. Header-only packages skip it.
func (r *Recipe) Build(ctx context.Context, c *recipe.Context) error {
	if c.Options.Bool("header_only") {
		return nil
	}
	src := c.Folders.Source
	bootstrap := []string{"--prefix=" + c.Folders.Package}
	if c.Options.Bool("python") {
		bootstrap = append(bootstrap, "--with-python=python3")
	}
	if err := c.Run(ctx, src, "./bootstrap.sh", bootstrap...); err != nil {
		return err
	}
	return c.Run(ctx, src, "./b2", B2Args(c)...)
}

func (r *Recipe) Package(ctx context.Context, c *recipe.Context) error {
	pkg := c.Folders.Package
	if _, err := files.Copy("LICENSE_1_0.txt", c.Folders.Source, filepath.Join(pkg, "licenses"), false); err != nil {
		return err
	}
	if !c.Options.Bool("header_only") {
		return nil
	}
	n, err := files.Copy("boost/**", c.Folders.Source, filepath.Join(pkg, "include"), true)
	if err != nil {
		return err
	}
	if len(n) == 0 && !c.DryRun {
		return fmt.Errorf("no boost headers under %s", c.Folders.Source)
	}
	return nil
}

func (r *Recipe) PackageInfo(c *recipe.Context, info *recipe.PackageInfo) {
	ci := info.CppInfo
	ci.SetProperty(recipe.CMakeFileName, "Boost")
	ci.SetProperty(recipe.CMakeTargetName, "Boost::boost")
	if c.Options.Bool("header_only") {
		ci.BinDirs = nil
		ci.LibDirs = nil
		return
	}
	libs, err := files.CollectLibs(c.Folders.Package, ci.LibDirs)
	if err != nil {
		c.Logger().Warn("cannot collect boost libraries", zap.Error(err))
	}
	ci.Libs = libs
	if c.Settings.OS == recipe.Linux || c.Settings.OS == recipe.FreeBSD {
		ci.SystemLibs = []string{"pthread", "rt"}
	}
}

// Test builds a lambda consumer, plus a filesystem one for compiled
// packages and a Boost.Python module when enabled, then runs them with
// ctest unless cross building.
func (r *Recipe) Test(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error {
	if err := files.WriteFS(testPackage, "test_package", c.Folders.Source); err != nil {
		return err
	}
	if err := cmake.NewDeps(c).Generate(); err != nil {
		return err
	}
	opts := pkg.Options
	if opts == nil {
		opts = recipe.NewOptions(nil)
	}
	tc := cmake.NewToolchain(c)
	if opts.Bool("header_only") {
		tc.Variables["HEADER_ONLY"] = true
	} else {
		tc.Variables["Boost_USE_STATIC_LIBS"] = !opts.Bool("shared")
	}
	if opts.Bool("python") {
		tc.Variables["WITH_PYTHON"] = true
	}
	if err := tc.Generate(); err != nil {
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
		c.Logger().Info("cross building, not running the boost tests")
		return nil
	}
	return m.Test(ctx)
}
