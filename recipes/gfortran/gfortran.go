// Package gfortran is the recipe of the GNU Fortran compiler as a tool
// package. It builds GCC with only the C and Fortran front ends.
package gfortran

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/pkgs/files"
	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
	"github.com/goplus/llarhub/recipes/gcc"
	"go.uber.org/zap"
)

//go:embed data.yml
var dataYML []byte

//go:embed test_package
var testPackage embed.FS

var data = recipe.MustParseData(dataYML)

func init() {
	recipes.Register("gfortran", New)
}

// Recipe shares the requirements, validation and build steps of gcc.
type Recipe struct {
	gcc.Recipe
}

func New() recipe.Recipe {
	return &Recipe{Recipe: gcc.Recipe{Languages: "c,fortran"}}
}

func (r *Recipe) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        "gfortran",
		Description: "The GNU Fortran compiler, front end and runtime libraries of GCC.",
		License:     "GPL-3.0-only",
		Homepage:    "https://gcc.gnu.org/fortran",
		URL:         recipes.RepoURL,
		Topics:      []string{"gcc", "gnu", "compiler", "fortran"},
		PackageType: recipe.Application,
		Settings:    []string{"os", "compiler", "arch", "build_type"},
	}
}

func (r *Recipe) Data() *recipe.Data {
	return data
}

func (r *Recipe) PackageInfo(c *recipe.Context, info *recipe.PackageInfo) {
	ci := info.CppInfo
	ci.Libs = []string{"gfortran", "quadmath"}
	if c.Settings.OS == recipe.Linux || c.Settings.OS == recipe.FreeBSD {
		ci.SystemLibs = []string{"m"}
	}
	ci.SetProperty(recipe.CMakeTargetName, "gfortran::gfortran")
	gcc.DefineTool(c, info, "FC", filepath.Join(c.Folders.Package, "bin", "gfortran-"+c.Version()))
}

var lookPath = exec.LookPath

// Test compiles and runs a Fortran program with the packaged compiler,
// inspecting the binary's loader information when the tool for it is
// installed.
func (r *Recipe) Test(ctx context.Context, c *recipe.Context, pkg *recipe.Dependency) error {
	log := c.Logger()
	var fc string
	if pkg.Info != nil {
		fc, _ = pkg.Info.BuildEnv.Get("FC")
	}
	if fc == "" {
		return fmt.Errorf("%s does not define FC", pkg.Ref)
	}
	if err := files.WriteFS(testPackage, "test_package", c.Folders.Source); err != nil {
		return err
	}
	if err := os.MkdirAll(c.Folders.Build, 0o755); err != nil {
		return err
	}

	env := &recipe.Env{}
	buildsys.UseDependency(env, pkg, runtime.GOOS)
	extra := env.Environ()
	run := func(name string, args ...string) error {
		return c.RunEnv(ctx, c.Folders.Build, extra, name, args...)
	}
	// hello_f90 links the packaged libgfortran
	rt := c.Runtime.Clone()
	buildsys.UseRuntime(rt, pkg, runtime.GOOS)
	runApp := func(name string, args ...string) error {
		return c.RunEnv(ctx, c.Folders.Build, rt.Environ(), name, args...)
	}

	log.Info("testing build using gfortran", zap.String("FC", fc))
	if err := run(fc, "--version"); err != nil {
		return err
	}
	if err := run(fc, "-dumpversion"); err != nil {
		return err
	}
	input := filepath.Join(c.Folders.Source, "hello.f90")
	output := filepath.Join(c.Folders.Build, "hello_f90")
	if err := run(fc, input, "-o", output); err != nil {
		return err
	}
	log.Info("built test program", zap.String("output", output))

	if c.CrossBuilding() {
		log.Info("cross building, not running the test program")
		return nil
	}
	inspect := map[string][]string{
		recipe.Linux: {"readelf", "-l"},
		recipe.Macos: {"otool", "-L"},
	}
	if tool, ok := inspect[c.Settings.OS]; ok {
		if _, err := lookPath(tool[0]); err != nil {
			log.Info(tool[0] + " is not on the PATH, skipping the " + tool[0] + " test")
		} else if err := runApp(tool[0], tool[1], output); err != nil {
			return err
		}
	}
	return runApp(output)
}
