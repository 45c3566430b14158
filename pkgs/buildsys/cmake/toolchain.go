package cmake

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
)

// Files written into the generators folder.
const (
	ToolchainFile = "llar_toolchain.cmake"
	StateFile     = "llar_cmake.json"
)

// Toolchain writes the CMake toolchain file of a recipe build. Recipes
// fill Variables in their Generate hook.
type Toolchain struct {
	c *recipe.Context

	// Variables are set in the toolchain file. bool values become ON/OFF.
	Variables map[string]any
	// CacheVariables are passed as -D on the configure command line.
	CacheVariables map[string]any
	Generator      string
}

type state struct {
	Generator      string            `json:"generator,omitempty"`
	BuildType      string            `json:"build_type,omitempty"`
	Toolchain      string            `json:"toolchain"`
	CacheVariables map[string]string `json:"cache_variables,omitempty"`
}

// NewToolchain returns a toolchain for c.
func NewToolchain(c *recipe.Context) *Toolchain {
	return &Toolchain{
		c:              c,
		Variables:      map[string]any{},
		CacheVariables: map[string]any{},
	}
}

// Content renders the toolchain file.
func (t *Toolchain) Content() string {
	var b strings.Builder
	b.WriteString("# Generated by llarhub for " + t.c.Ref.String() + "\n")
	b.WriteString("include_guard()\n\n")

	c := t.c
	if cc, ok := c.Env.Get("CC"); ok {
		fmt.Fprintf(&b, "set(CMAKE_C_COMPILER %s)\n", quote(cc))
	}
	if cxx, ok := c.Env.Get("CXX"); ok {
		fmt.Fprintf(&b, "set(CMAKE_CXX_COMPILER %s)\n", quote(cxx))
	}
	if o := c.Options; o != nil {
		if o.Has("fPIC") {
			fmt.Fprintf(&b, "set(CMAKE_POSITION_INDEPENDENT_CODE %s)\n", onOff(o.Bool("fPIC")))
		}
		if o.Has("shared") {
			fmt.Fprintf(&b, "set(BUILD_SHARED_LIBS %s CACHE BOOL \"Build shared libraries\" FORCE)\n", onOff(o.Bool("shared")))
		}
	}
	if c.Settings.Compiler.Libcxx == "libc++" {
		b.WriteString("string(APPEND CMAKE_CXX_FLAGS_INIT \" -stdlib=libc++\")\n")
	}

	prefixes := []string{c.Folders.Generators}
	for _, name := range c.DepNames() {
		prefixes = append(prefixes, c.Deps[name].PackageFolder)
	}
	fmt.Fprintf(&b, "list(PREPEND CMAKE_PREFIX_PATH %s)\n", quoteAll(prefixes))
	fmt.Fprintf(&b, "list(PREPEND CMAKE_MODULE_PATH %s)\n", quote(c.Folders.Generators))
	b.WriteString("set(CMAKE_FIND_PACKAGE_PREFER_CONFIG ON)\n")

	if len(t.Variables) > 0 {
		b.WriteString("\n")
	}
	for _, k := range sortedKeys(t.Variables) {
		v, typ := cmakeValue(t.Variables[k])
		fmt.Fprintf(&b, "set(%s %s CACHE %s \"Variable %s set by llarhub\" FORCE)\n", k, quote(v), typ, k)
	}
	return b.String()
}

// Generate writes llar_toolchain.cmake and the state CMake reads back.
func (t *Toolchain) Generate() error {
	dir := t.c.Folders.Generators
	if err := buildsys.WriteState(dir, StateFile, t.state()); err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, ToolchainFile), []byte(t.Content()), 0o644)
}

func (t *Toolchain) state() *state {
	st := &state{
		Generator: t.Generator,
		BuildType: t.c.Settings.BuildType,
		Toolchain: filepath.Join(t.c.Folders.Generators, ToolchainFile),
	}
	if len(t.CacheVariables) > 0 {
		st.CacheVariables = map[string]string{}
		for k, v := range t.CacheVariables {
			st.CacheVariables[k], _ = cmakeValue(v)
		}
	}
	return st
}

func cmakeValue(v any) (val, typ string) {
	switch v := v.(type) {
	case bool:
		return onOff(v), "BOOL"
	case string:
		return v, "STRING"
	case int:
		return strconv.Itoa(v), "STRING"
	}
	return fmt.Sprint(v), "STRING"
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func quote(s string) string {
	return strconv.Quote(filepath.ToSlash(s))
}

func quoteAll(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = quote(v)
	}
	return strings.Join(q, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
