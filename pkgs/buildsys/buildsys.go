// Package buildsys holds what the Autotools and CMake helpers share: the
// BuildSystem lifecycle, dependency environment injection and the state
// files generators leave for the build step.
package buildsys

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
)

// BuildSystem captures shared capabilities of build helpers (CMake, Autotools, etc).
// It keeps the common lifecycle and dependency/env setup; implementations add their own extras.
type BuildSystem interface {
	// Use injects a built dependency into the environment.
	Use(dep *recipe.Dependency)

	// Basic paths.
	Source(dir string)
	InstallDir(dir string)

	// Environment helper.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}

// UseDependency adds the search paths of dep to env: pkg-config and
// CMake prefixes on every platform, INCLUDE/LIB for MSVC and
// CPPFLAGS/LDFLAGS elsewhere. Directories that do not exist are skipped.
func UseDependency(env *recipe.Env, dep *recipe.Dependency, goos string) {
	root := dep.PackageFolder
	info := dep.CppInfo().Aggregate()

	exists := func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}
	if exists(root) {
		env.Prepend("CMAKE_PREFIX_PATH", root)
	}
	for _, d := range info.LibDirs {
		if pc := filepath.Join(root, d, "pkgconfig"); exists(pc) {
			env.Prepend("PKG_CONFIG_PATH", pc)
		}
	}
	for _, d := range info.IncludeDirs {
		inc := filepath.Join(root, d)
		if !exists(inc) {
			continue
		}
		env.Prepend("CMAKE_INCLUDE_PATH", inc)
		if goos == "windows" {
			env.Prepend("INCLUDE", inc)
		} else {
			env.Append("CPPFLAGS", "-I"+inc)
		}
	}
	for _, d := range info.LibDirs {
		lib := filepath.Join(root, d)
		if !exists(lib) {
			continue
		}
		env.Prepend("CMAKE_LIBRARY_PATH", lib)
		if goos == "windows" {
			env.Prepend("LIB", lib)
		} else {
			env.Append("LDFLAGS", "-L"+lib)
		}
	}
	if dep.Build {
		if _, ok := env.Get("PATH"); !ok {
			env.Define("PATH", os.Getenv("PATH"))
		}
		for _, d := range info.BinDirs {
			if bin := filepath.Join(root, d); exists(bin) {
				env.Prepend("PATH", bin)
			}
		}
		if dep.Info != nil {
			env.Merge(dep.Info.BuildEnv)
		}
	}
}

// LoaderPathVar is the variable the dynamic loader of goos searches for
// shared libraries.
func LoaderPathVar(goos string) string {
	switch goos {
	case "windows":
		return "PATH"
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	}
	return "LD_LIBRARY_PATH"
}

// UseRuntime adds what running binaries linked against dep needs to env:
// its bin dirs on PATH, its lib dirs on the loader path of goos and the
// package's RunEnv. Variables not yet in env start from the process
// value, so they extend rather than replace it.
func UseRuntime(env *recipe.Env, dep *recipe.Dependency, goos string) {
	root := dep.PackageFolder
	info := dep.CppInfo().Aggregate()
	prepend := func(key string, dirs []string) {
		for _, d := range dirs {
			dir := filepath.Join(root, d)
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			if _, ok := env.Get(key); !ok {
				if v := os.Getenv(key); v != "" {
					env.Define(key, v)
				}
			}
			env.Prepend(key, dir)
		}
	}
	prepend("PATH", info.BinDirs)
	if goos != "windows" {
		prepend(LoaderPathVar(goos), info.LibDirs)
	}
	if dep.Info != nil {
		env.Merge(dep.Info.RunEnv)
	}
}

// BuildTypeFlags returns the C/C++ optimization flags of a build type.
func BuildTypeFlags(buildType string) []string {
	switch buildType {
	case recipe.Release:
		return []string{"-O3"}
	case recipe.Debug:
		return []string{"-g"}
	case recipe.RelWithDebInfo:
		return []string{"-O2", "-g"}
	case recipe.MinSizeRel:
		return []string{"-Os"}
	}
	return nil
}

// WriteState stores v as JSON in dir/name, atomically.
func WriteState(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, name), b, 0o644)
}

// ReadState loads dir/name into v. It reports false when the file does
// not exist, which means the generator was not run.
func ReadState(dir, name string, v any) (bool, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

// WriteEnvScript writes env as a sourceable sh script.
func WriteEnvScript(dir, name string, env *recipe.Env) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, name), []byte(env.Script()), 0o644)
}
