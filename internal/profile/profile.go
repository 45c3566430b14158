// Package profile loads the build profiles that pick settings, options
// and environment for a build.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goplus/llarhub/internal/env"
	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
	toml "github.com/pelletier/go-toml/v2"
)

// Default is the profile used when none is named.
const Default = "default"

// Profile is a TOML document:
//
//	[settings]
//	os = "Linux"
//	arch = "x86_64"
//	build_type = "Release"
//	[settings.compiler]
//	name = "gcc"
//	version = "12"
//	libcxx = "libstdc++11"
//
//	[options]
//	"*:shared" = "False"
//	"boost:header_only" = "True"
//
//	[buildenv]
//	MAKEFLAGS = "-s"
//
//	[packages]
//	zlib = "/usr"
type Profile struct {
	Settings recipe.Settings `toml:"settings"`
	// SettingsBuild describes the build machine when cross building.
	SettingsBuild *recipe.Settings `toml:"settings_build,omitempty"`
	// Options are keyed "pkg:option"; "*" matches every package.
	Options  map[string]string `toml:"options,omitempty"`
	BuildEnv map[string]string `toml:"buildenv,omitempty"`
	// Packages maps requirements that have no recipe here to the prefix
	// of an existing installation.
	Packages map[string]string `toml:"packages,omitempty"`
	// Jobs bounds make/cmake parallelism; 0 means one per CPU.
	Jobs int `toml:"jobs,omitempty"`
}

// Parse decodes a profile, rejecting unknown keys.
func Parse(b []byte) (*Profile, error) {
	var p Profile
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks settings and option keys.
func (p *Profile) Validate() error {
	if err := p.Settings.Validate(); err != nil {
		return err
	}
	if p.SettingsBuild != nil {
		if err := p.SettingsBuild.Validate(); err != nil {
			return fmt.Errorf("settings_build: %w", err)
		}
	}
	for k := range p.Options {
		pkg, opt, ok := strings.Cut(k, ":")
		if !ok || pkg == "" || opt == "" {
			return fmt.Errorf("options: key %q is not pkg:option", k)
		}
	}
	return nil
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Resolve finds a profile by path or by name in the profiles directory.
// A missing default profile is detected from the host.
func Resolve(nameOrPath string) (*Profile, error) {
	if nameOrPath == "" {
		nameOrPath = Default
	}
	if _, err := os.Stat(nameOrPath); err == nil {
		return Load(nameOrPath)
	}
	dir, err := env.ProfilesDir()
	if err != nil {
		return nil, err
	}
	p, err := Load(filepath.Join(dir, nameOrPath+".toml"))
	if errors.Is(err, fs.ErrNotExist) && nameOrPath == Default {
		return Detect()
	}
	return p, err
}

// Save writes the profile atomically.
func (p *Profile) Save(path string) error {
	b, err := p.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0o644)
}

// Marshal renders the profile as TOML.
func (p *Profile) Marshal() ([]byte, error) {
	return toml.Marshal(p)
}

// OptionsFor returns the option values the profile sets for pkg.
// Package specific keys override "*" ones.
func (p *Profile) OptionsFor(pkg string) map[string]string {
	out := map[string]string{}
	for _, scope := range []string{"*", pkg} {
		for k, v := range p.Options {
			if name, opt, _ := strings.Cut(k, ":"); name == scope {
				out[opt] = v
			}
		}
	}
	return out
}

// PackageOptions returns only the "pkg:" keys of the profile, the ones a
// package must declare.
func (p *Profile) PackageOptions(pkg string) map[string]string {
	out := map[string]string{}
	for k, v := range p.Options {
		if name, opt, _ := strings.Cut(k, ":"); name == pkg {
			out[opt] = v
		}
	}
	return out
}

// Env returns the [buildenv] variables sorted by name.
func (p *Profile) Env() *recipe.Env {
	keys := make([]string, 0, len(p.BuildEnv))
	for k := range p.BuildEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e := &recipe.Env{}
	for _, k := range keys {
		e.Define(k, p.BuildEnv[k])
	}
	return e
}

// BuildSettings returns the build machine settings: SettingsBuild when
// cross building, the host settings otherwise.
func (p *Profile) BuildSettings() recipe.Settings {
	if p.SettingsBuild != nil {
		return *p.SettingsBuild
	}
	return p.Settings
}
