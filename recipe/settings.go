package recipe

import (
	"fmt"
	"sort"
	"strings"
)

// Operating systems.
const (
	Linux   = "Linux"
	Macos   = "Macos"
	Windows = "Windows"
	FreeBSD = "FreeBSD"
)

// Build types.
const (
	Debug          = "Debug"
	Release        = "Release"
	RelWithDebInfo = "RelWithDebInfo"
	MinSizeRel     = "MinSizeRel"
)

// Compiler describes the compiler in use.
type Compiler struct {
	Name    string `toml:"name" json:"name,omitempty"`
	Version string `toml:"version" json:"version,omitempty"`
	Libcxx  string `toml:"libcxx,omitempty" json:"libcxx,omitempty"`
}

// IsMSVC reports whether the compiler is Microsoft's.
func (c Compiler) IsMSVC() bool {
	return c.Name == "msvc" || c.Name == "Visual Studio"
}

// IsClang reports whether the compiler is a clang flavour.
func (c Compiler) IsClang() bool {
	return c.Name == "clang" || c.Name == "apple-clang"
}

// Settings are the platform inputs of a build.
type Settings struct {
	OS        string   `toml:"os" json:"os,omitempty"`
	Arch      string   `toml:"arch" json:"arch,omitempty"`
	BuildType string   `toml:"build_type" json:"build_type,omitempty"`
	Compiler  Compiler `toml:"compiler" json:"compiler"`
}

var knownArchs = map[string]bool{
	"x86": true, "x86_64": true, "armv7": true, "armv7hf": true, "armv8": true,
	"ppc64le": true, "ppc64": true, "s390x": true, "riscv64": true, "mips64": true,
}

var knownBuildTypes = map[string]bool{
	Debug: true, Release: true, RelWithDebInfo: true, MinSizeRel: true,
}

// Validate checks the values of fields that are set.
func (s Settings) Validate() error {
	switch s.OS {
	case "", Linux, Macos, Windows, FreeBSD:
	default:
		return fmt.Errorf("settings: unknown os %q", s.OS)
	}
	if s.Arch != "" && !knownArchs[s.Arch] {
		return fmt.Errorf("settings: unknown arch %q", s.Arch)
	}
	if s.BuildType != "" && !knownBuildTypes[s.BuildType] {
		return fmt.Errorf("settings: unknown build_type %q", s.BuildType)
	}
	return nil
}

// Remove clears a setting by its dotted name, e.g. "compiler.libcxx".
// Removing "compiler" clears all compiler subsettings.
func (s *Settings) Remove(field string) {
	switch field {
	case "os":
		s.OS = ""
	case "arch":
		s.Arch = ""
	case "build_type":
		s.BuildType = ""
	case "compiler":
		s.Compiler = Compiler{}
	case "compiler.version":
		s.Compiler.Version = ""
	case "compiler.libcxx":
		s.Compiler.Libcxx = ""
	default:
		panic("settings: unknown field " + field)
	}
}

// Only keeps the named top-level settings and clears the others.
// Recipes declare the settings they depend on this way.
func (s Settings) Only(fields ...string) Settings {
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	out := s
	for _, f := range []string{"os", "arch", "build_type", "compiler"} {
		if !keep[f] {
			out.Remove(f)
		}
	}
	return out
}

// Values returns the non-empty settings keyed by dotted name.
func (s Settings) Values() map[string]string {
	m := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("os", s.OS)
	set("arch", s.Arch)
	set("build_type", s.BuildType)
	set("compiler", s.Compiler.Name)
	set("compiler.version", s.Compiler.Version)
	set("compiler.libcxx", s.Compiler.Libcxx)
	return m
}

// String returns a canonical, sorted "k=v,k=v" form.
func (s Settings) String() string {
	vals := s.Values()
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + vals[k]
	}
	return strings.Join(parts, ",")
}
