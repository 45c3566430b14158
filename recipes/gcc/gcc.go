// Package gcc is the recipe of the GNU Compiler Collection, built with
// Autotools against mpc, mpfr, gmp, isl and zlib.
package gcc

import (
	"context"
	_ "embed"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goplus/llarhub/pkgs/buildsys/autotools"
	"github.com/goplus/llarhub/pkgs/files"
	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
	"go.uber.org/zap"
)

//go:embed data.yml
var dataYML []byte

var data = recipe.MustParseData(dataYML)

func init() {
	recipes.Register("gcc", New)
}

const description = "The GNU Compiler Collection includes front ends for C, " +
	"C++, Objective-C, Fortran, Ada, Go, and D, as well as " +
	"libraries for these languages (libstdc++,...)."

// Recipe builds GCC. Languages is the --enable-languages list; recipes
// of single front ends embed Recipe with a shorter one.
type Recipe struct {
	Languages string
}

// New returns the gcc recipe with the C, C++ and Fortran front ends.
func New() recipe.Recipe {
	return &Recipe{Languages: "c,c++,fortran"}
}

func (r *Recipe) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        "gcc",
		Description: description,
		License:     "GPL-3.0-only",
		Homepage:    "https://gcc.gnu.org",
		URL:         recipes.RepoURL,
		Topics:      []string{"gcc", "gnu", "compiler", "c", "c++"},
		PackageType: recipe.Application,
		Settings:    []string{"os", "compiler", "arch", "build_type"},
	}
}

func (r *Recipe) Data() *recipe.Data {
	return data
}

// Configure drops compiler.libcxx for clang: autotools cannot strip
// -stdlib from CXXFLAGS.
func (r *Recipe) Configure(c *recipe.Context) error {
	if c.Settings.Compiler.IsClang() {
		c.Settings.Remove("compiler.libcxx")
	}
	return nil
}

func (r *Recipe) BuildRequirements(c *recipe.Context, reqs *recipe.Requirements) {
	if c.Settings.OS == recipe.Linux {
		// binutils is broken on Macos and Windows uses msys/mingw tools.
		reqs.ToolRequire("binutils/2.38")
	}
	reqs.ToolRequire("flex/2.6.4")
}

func (r *Recipe) Requirements(c *recipe.Context, reqs *recipe.Requirements) {
	reqs.Require("mpc/1.2.0")
	reqs.Require("mpfr/4.1.0")
	reqs.Require("gmp/6.2.1")
	reqs.Require("zlib/1.2.13")
	reqs.Require("isl/0.24")
}

// PackageID ignores the compiler used to bootstrap.
func (r *Recipe) PackageID(info *recipe.IDInfo) {
	info.Settings.Remove("compiler")
}

func (r *Recipe) ValidateBuild(c *recipe.Context) error {
	if c.Settings.Compiler.IsMSVC() {
		return recipe.InvalidConfiguration("GCC can't be built with MSVC")
	}
	return nil
}

func (r *Recipe) Validate(c *recipe.Context) error {
	switch {
	case c.Settings.OS == recipe.Windows:
		return recipe.InvalidConfiguration("Windows builds aren't currently supported. Contributions to support this are welcome.")
	case c.Settings.OS == recipe.Macos:
		// clang rejects -print-multi-os-directory while building libgcc.
		return recipe.InvalidConfiguration("Macos builds aren't currently supported. Contributions to support this are welcome.")
	case c.CrossBuilding():
		return recipe.InvalidConfiguration("Cross builds are not currently supported. Contributions to support this are welcome.")
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

// sdkPath returns the macOS SDK the compiler is configured against.
var sdkPath = func(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "xcrun", "--show-sdk-path").Output()
	if err != nil {
		return "", fmt.Errorf("xcrun --show-sdk-path: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Generate passes dependencies on the configure command line. Autotools
// deps are not generated: their LIBS break the compiler checks.
func (r *Recipe) Generate(ctx context.Context, c *recipe.Context) error {
	tc := autotools.NewToolchain(c)
	args, err := ConfigureArgs(c, r.Languages)
	if err != nil {
		return err
	}
	tc.ConfigureArgs = append(tc.ConfigureArgs, args...)
	if c.Settings.OS == recipe.Macos {
		sdk, err := sdkPath(ctx)
		if err != nil {
			return err
		}
		tc.ConfigureArgs = append(tc.ConfigureArgs,
			"--with-sysroot="+sdk,
			// keep the install isolated from the system headers
			"--with-native-system-header-dir=/usr/include",
		)
		tc.MakeArgs = append(tc.MakeArgs, "BOOT_LDFLAGS=-Wl,-headerpad_max_install_names")
	}
	return tc.Generate()
}

// ConfigureArgs returns the configure arguments of a GCC build with the
// given front ends.
func ConfigureArgs(c *recipe.Context, languages string) ([]string, error) {
	pkg := c.Folders.Package
	args := []string{
		"--enable-languages=" + languages,
		"--disable-nls",
		"--disable-multilib",
		"--disable-bootstrap",
		"--prefix=" + pkg,
		"--libexecdir=" + filepath.Join(pkg, "bin", "libexec"),
	}
	for _, name := range []string{"zlib", "isl", "gmp", "mpc", "mpfr"} {
		dep, err := c.Dependency(name)
		if err != nil {
			return nil, err
		}
		args = append(args, "--with-"+name+"="+dep.PackageFolder)
	}
	return append(args,
		"--with-pkgversion=llarhub GCC "+c.Version(),
		"--program-suffix=-"+c.Version(),
		"--with-bugurl="+recipes.RepoURL+"/issues",
	), nil
}

// PatchSources installs 64-bit libraries into lib and fixes the install
// name of libgcc_s on Darwin. Both files are optional.
func PatchSources(c *recipe.Context) error {
	src := c.Folders.Source
	if err := files.ReplaceInFile(c, filepath.Join(src, "gcc", "config", "i386", "t-linux64"),
		"m64=../lib64", "m64=../lib", false); err != nil {
		return err
	}
	return files.ReplaceInFile(c, filepath.Join(src, "libgcc", "config", "t-slibgcc-darwin"),
		"@shlib_slibdir@", filepath.Join(c.Folders.Package, "lib"), false)
}

func (r *Recipe) Build(ctx context.Context, c *recipe.Context) error {
	if err := PatchSources(c); err != nil {
		return err
	}
	at, err := autotools.New(c)
	if err != nil {
		return err
	}
	if err := at.Configure(ctx); err != nil {
		return err
	}
	return at.Build(ctx)
}

func (r *Recipe) Package(ctx context.Context, c *recipe.Context) error {
	at, err := autotools.New(c)
	if err != nil {
		return err
	}
	if err := at.Make(ctx, "install-strip"); err != nil {
		return err
	}
	return Tidy(c)
}

// Tidy removes docs and libtool archives from the package folder and
// copies the licenses.
func Tidy(c *recipe.Context) error {
	pkg := c.Folders.Package
	if err := files.Rmdir(filepath.Join(pkg, "share")); err != nil {
		return err
	}
	if err := files.Rm("*.la", pkg, true); err != nil {
		return err
	}
	_, err := files.Copy("COPYING*", c.Folders.Source, filepath.Join(pkg, "licenses"), false)
	return err
}

// component is one runtime library shipped with the compilers.
type component struct {
	name       string
	target     string
	requires   []string
	systemLibs []string
}

var components = []component{
	{name: "gcc_s", systemLibs: []string{"m", "rt", "pthread", "dl"}},
	{name: "gfortran", requires: []string{"gcc_s", "quadmath"}, systemLibs: []string{"m"}},
	{name: "quadmath", systemLibs: []string{"m"}},
	{name: "itm", systemLibs: []string{"pthread"}},
	{name: "tsan", requires: []string{"gcc_s", "stdc++"}, systemLibs: []string{"pthread", "m", "dl"}},
	{name: "stdc++", target: "gcc::stdcpp", requires: []string{"gcc_s"}, systemLibs: []string{"m"}},
	{name: "ssp"},
	{name: "atomic", systemLibs: []string{"pthread"}},
	{name: "gomp", systemLibs: []string{"pthread", "dl"}},
	{name: "asan", requires: []string{"gcc_s", "stdc++"}, systemLibs: []string{"pthread", "m", "dl"}},
	{name: "ubsan", requires: []string{"gcc_s", "stdc++"}, systemLibs: []string{"pthread", "dl", "rt"}},
	{name: "lsan", requires: []string{"gcc_s", "stdc++"}, systemLibs: []string{"pthread", "dl", "rt"}},
	{name: "cc1", requires: []string{"gcc_s", "stdc++"}},
}

func (r *Recipe) PackageInfo(c *recipe.Context, info *recipe.PackageInfo) {
	withSystemLibs := c.Settings.OS == recipe.Linux || c.Settings.OS == recipe.FreeBSD
	for _, comp := range components {
		ci := info.CppInfo.Component(comp.name)
		target := comp.target
		if target == "" {
			target = "gcc::" + comp.name
		}
		ci.SetProperty(recipe.CMakeTargetName, target)
		ci.LibDirs = []string{"lib"}
		ci.Libs = []string{comp.name}
		ci.Requires = comp.requires
		if withSystemLibs {
			ci.SystemLibs = comp.systemLibs
		}
	}

	bin := filepath.Join(c.Folders.Package, "bin")
	v := c.Version()
	for _, tool := range []struct{ env, exe string }{
		{"CC", "gcc"},
		{"CXX", "g++"},
		{"FC", "gfortran"},
		{"AR", "gcc-ar"},
		{"NM", "gcc-nm"},
		{"RANLIB", "gcc-ranlib"},
	} {
		DefineTool(c, info, tool.env, filepath.Join(bin, tool.exe+"-"+v))
	}
}

// DefineTool exports a compiler tool to consumers' build environment.
func DefineTool(c *recipe.Context, info *recipe.PackageInfo, key, path string) {
	c.Logger().Info("creating "+key+" env var", zap.String("path", path))
	info.BuildEnv.Define(key, path)
}
