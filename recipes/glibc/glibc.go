// Package glibc is the recipe of the GNU C Library.
package glibc

import (
	"context"
	"embed"
	"os"
	"path/filepath"

	"github.com/goplus/llarhub/pkgs/buildsys/autotools"
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
	recipes.Register("glibc", New)
}

type Recipe struct{}

func New() recipe.Recipe {
	return &Recipe{}
}

func (r *Recipe) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        "glibc",
		Description: "The GNU C Library provides many of the low-level components used directly by programs written in the C or C++ languages",
		License:     "GPL-2.0-only (src), LGPL-2.1-only (lib)",
		Homepage:    "https://www.gnu.org/software/libc",
		URL:         recipes.RepoURL,
		Topics:      []string{"gnu", "libc", "c", "c++"},
		PackageType: recipe.Library,
		Settings:    []string{"os", "compiler", "arch", "build_type"},
	}
}

func (r *Recipe) Data() *recipe.Data {
	return data
}

// BuildRequirements lists the tools glibc's INSTALL requires. texinfo,
// gawk, perl and python are taken from the system.
func (r *Recipe) BuildRequirements(c *recipe.Context, reqs *recipe.Requirements) {
	reqs.ToolRequire("make/4.3")
	reqs.ToolRequire("binutils/2.38")
	reqs.ToolRequire("bison/3.8.2")
	// exactly this version, used when configure.ac is modified
	reqs.ToolRequire("autoconf/2.69")
	reqs.ToolRequire("gettext/0.21")
}

func (r *Recipe) Requirements(c *recipe.Context, reqs *recipe.Requirements) {
	reqs.Require("linux-headers-generic/5.14.9")
}

func (r *Recipe) Validate(c *recipe.Context) error {
	if c.Settings.OS == recipe.Windows {
		return recipe.InvalidConfiguration("Windows builds aren't currently supported - please contribute if you'd to improve this recipe")
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

// Generate installs through DESTDIR under /usr, which is part of the
// glibc ABI.
func (r *Recipe) Generate(ctx context.Context, c *recipe.Context) error {
	tc := autotools.NewToolchain(c)
	tc.Env.Define("DESTDIR", c.Folders.Package)
	// C++ is only used by the test suite
	tc.Env.Define("CXX", "invalid")
	tc.ConfigureArgs = append(tc.ConfigureArgs,
		"--prefix=/usr",
		"--with-gd=no",
		"--with-pkgversion=llarhub GNU libc "+c.Version(),
		"--with-bugurl="+recipes.RepoURL+"/issues",
	)
	tc.ExtraCFlags = append(tc.ExtraCFlags, "-nostdinc")
	if err := tc.Generate(); err != nil {
		return err
	}
	return autotools.NewDeps(c).Generate()
}

func (r *Recipe) Build(ctx context.Context, c *recipe.Context) error {
	at, err := autotools.New(c)
	if err != nil {
		return err
	}
	if err := at.Configure(ctx); err != nil {
		return err
	}
	if err := at.Build(ctx); err != nil {
		return err
	}
	return at.Make(ctx, "check")
}

func (r *Recipe) Package(ctx context.Context, c *recipe.Context) error {
	at, err := autotools.New(c)
	if err != nil {
		return err
	}
	if err := at.Install(ctx); err != nil {
		return err
	}
	_, err = files.Copy("COPYING*", c.Folders.Source, filepath.Join(c.Folders.Package, "licenses"), false)
	return err
}

func (r *Recipe) PackageInfo(c *recipe.Context, info *recipe.PackageInfo) {
	ci := info.CppInfo
	ci.IncludeDirs = []string{filepath.Join("usr", "include")}
	ci.LibDirs = []string{filepath.Join("usr", "lib")}
	ci.BinDirs = []string{filepath.Join("usr", "bin")}
	ci.ResDirs = []string{filepath.Join("usr", "share")}
	ci.SetProperty(recipe.CMakeTargetName, "glibc::glibc")
}

// Test compiles a C11 threads program against the package headers and
// runs it unless cross building.
func (r *Recipe) Test(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error {
	if err := files.WriteFS(testPackage, "test_package", c.Folders.Source); err != nil {
		return err
	}
	if err := os.MkdirAll(c.Folders.Build, 0o755); err != nil {
		return err
	}

	cc, ok := c.Env.Get("CC")
	if !ok {
		cc = "cc"
	}
	out := filepath.Join(c.Folders.Build, "example")
	args := []string{filepath.Join(c.Folders.Source, "example.c"), "-o", out, "-std=c11", "-pthread"}
	ci := pkg.CppInfo()
	for _, d := range ci.IncludeDirs {
		args = append(args, "-I"+filepath.Join(pkg.PackageFolder, d))
	}
	for _, d := range ci.LibDirs {
		args = append(args, "-L"+filepath.Join(pkg.PackageFolder, d))
	}
	if err := c.Run(ctx, c.Folders.Build, cc, args...); err != nil {
		return err
	}
	if c.CrossBuilding() {
		c.Logger().Info("cross building, not running the test program", zap.String("program", out))
		return nil
	}
	return c.Run(ctx, c.Folders.Build, out)
}
