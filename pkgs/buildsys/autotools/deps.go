package autotools

import (
	"path/filepath"

	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/recipe"
)

// Deps exports the compile and link flags of every host dependency as
// CPPFLAGS, LDFLAGS and LIBS.
type Deps struct {
	c *recipe.Context
}

// NewDeps returns the dependency generator of c.
func NewDeps(c *recipe.Context) *Deps {
	return &Deps{c: c}
}

// Environ aggregates the flags of all host dependencies, in name order.
func (d *Deps) Environ() *recipe.Env {
	env := &recipe.Env{}
	for _, name := range d.c.DepNames() {
		dep := d.c.Deps[name]
		info := dep.CppInfo().Aggregate()
		for _, inc := range info.IncludeDirs {
			env.Append("CPPFLAGS", "-I"+filepath.Join(dep.PackageFolder, inc))
		}
		for _, def := range info.Defines {
			env.Append("CPPFLAGS", "-D"+def)
		}
		for _, lib := range info.LibDirs {
			env.Append("LDFLAGS", "-L"+filepath.Join(dep.PackageFolder, lib))
		}
		for _, lib := range info.Libs {
			env.Append("LIBS", "-l"+lib)
		}
		for _, lib := range info.SystemLibs {
			env.Append("LIBS", "-l"+lib)
		}
	}
	return env
}

// Generate writes llardeps.env and the state AutoTools reads back.
func (d *Deps) Generate() error {
	env := d.Environ()
	dir := d.c.Folders.Generators
	if err := buildsys.WriteEnvScript(dir, DepsScript, env); err != nil {
		return err
	}
	return buildsys.WriteState(dir, DepsState, env)
}
