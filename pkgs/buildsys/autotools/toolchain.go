package autotools

import (
	"strings"

	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/pkgs/gnu"
	"github.com/goplus/llarhub/recipe"
)

// Files written by Toolchain.Generate into the generators folder.
const (
	StateFile  = "llarbuild.json"
	EnvScript  = "llarbuild.env"
	DepsScript = "llardeps.env"
	DepsState  = "llardeps.json"
)

// Toolchain computes the configure arguments and compiler environment
// of an Autotools build. Recipes adjust the exported fields in their
// Generate hook before calling Generate.
type Toolchain struct {
	c *recipe.Context

	ConfigureArgs []string
	MakeArgs      []string

	ExtraCFlags   []string
	ExtraCXXFlags []string
	ExtraLDFlags  []string
	ExtraDefines  []string

	// Env is written along with the flags, e.g. DESTDIR.
	Env *recipe.Env
}

// state is what Generate leaves for AutoTools.
type state struct {
	ConfigureArgs []string    `json:"configure_args"`
	MakeArgs      []string    `json:"make_args"`
	Env           *recipe.Env `json:"env"`
}

// NewToolchain returns a toolchain for c.
func NewToolchain(c *recipe.Context) *Toolchain {
	return &Toolchain{c: c, Env: &recipe.Env{}}
}

// Args returns the configure arguments: a --prefix on the package
// folder unless the recipe set one, --enable/--disable-shared from the
// shared option, and --host/--build when cross building.
func (t *Toolchain) Args() ([]string, error) {
	var args []string
	if !hasArg(t.ConfigureArgs, "--prefix") {
		args = append(args, "--prefix="+t.c.Folders.Package)
	}
	if o := t.c.Options; o != nil && o.Has("shared") {
		if o.Bool("shared") {
			args = append(args, "--enable-shared", "--disable-static")
		} else {
			args = append(args, "--disable-shared", "--enable-static")
		}
	}
	if t.c.CrossBuilding() {
		s := t.c.Settings
		host, err := gnu.Triplet(s.OS, s.Arch, s.Compiler.Name)
		if err != nil {
			return nil, err
		}
		b := t.c.SettingsBuild
		build, err := gnu.Triplet(b.OS, b.Arch, b.Compiler.Name)
		if err != nil {
			return nil, err
		}
		args = append(args, "--host="+host, "--build="+build)
	}
	return append(args, t.ConfigureArgs...), nil
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			return true
		}
	}
	return false
}

// Environ returns the compiler flags and extra variables the toolchain
// exports.
func (t *Toolchain) Environ() *recipe.Env {
	env := &recipe.Env{}
	flags := buildsys.BuildTypeFlags(t.c.Settings.BuildType)
	if o := t.c.Options; o != nil && o.Has("fPIC") && o.Bool("fPIC") {
		flags = append(flags, "-fPIC")
	}
	var defines []string
	switch t.c.Settings.BuildType {
	case recipe.Release, recipe.MinSizeRel:
		defines = append(defines, "NDEBUG")
	}
	defines = append(defines, t.ExtraDefines...)

	appendAll(env, "CPPFLAGS", prefixed("-D", defines))
	appendAll(env, "CFLAGS", flags)
	appendAll(env, "CFLAGS", t.ExtraCFlags)
	appendAll(env, "CXXFLAGS", flags)
	appendAll(env, "CXXFLAGS", t.ExtraCXXFlags)
	appendAll(env, "LDFLAGS", t.ExtraLDFlags)
	env.Merge(t.Env)
	return env
}

func appendAll(env *recipe.Env, key string, vals []string) {
	for _, v := range vals {
		env.Append(key, v)
	}
}

func prefixed(p string, vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = p + v
	}
	return out
}

// Generate writes llarbuild.env and the state AutoTools reads back.
func (t *Toolchain) Generate() error {
	args, err := t.Args()
	if err != nil {
		return err
	}
	env := t.Environ()
	dir := t.c.Folders.Generators
	if err := buildsys.WriteEnvScript(dir, EnvScript, env); err != nil {
		return err
	}
	t.c.Logger().Debug("autotools toolchain generated")
	return buildsys.WriteState(dir, StateFile, &state{
		ConfigureArgs: args,
		MakeArgs:      t.MakeArgs,
		Env:           env,
	})
}
