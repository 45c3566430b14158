package cmake

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/goplus/llarhub/pkgs/buildsys"
	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake wraps common CMake build steps with chainable configuration.
type CMake struct {
	c          *recipe.Context
	sourceDir  string
	buildDir   string
	installDir string
	generator  string
	buildType  string
	toolchain  string
	Defines    map[string]defineValue
	env        *recipe.Env
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New returns a helper configuring c.Folders.Source into c.Folders.Build
// with the toolchain Toolchain.Generate wrote, if any.
func New(c *recipe.Context) (*CMake, error) {
	m := &CMake{
		c:          c,
		sourceDir:  c.Folders.Source,
		buildDir:   c.Folders.Build,
		installDir: c.Folders.Package,
		buildType:  c.Settings.BuildType,
		Defines:    map[string]defineValue{},
		env:        &recipe.Env{},
	}
	var st state
	ok, err := buildsys.ReadState(c.Folders.Generators, StateFile, &st)
	if err != nil {
		return nil, err
	}
	if ok {
		m.generator = st.Generator
		m.toolchain = st.Toolchain
		if st.BuildType != "" {
			m.buildType = st.BuildType
		}
		for k, v := range st.CacheVariables {
			m.Define(k, v)
		}
	}
	return m, nil
}

func (m *CMake) Source(dir string) {
	m.sourceDir = dir
}

func (m *CMake) InstallDir(dir string) {
	m.installDir = dir
}

func (m *CMake) Generator(name string) *CMake {
	m.generator = name
	return m
}

func (m *CMake) BuildType(name string) *CMake {
	m.buildType = name
	return m
}

func (m *CMake) Toolchain(path string) *CMake {
	m.toolchain = path
	return m
}

func (m *CMake) Define(key, value string) *CMake {
	m.Defines[key] = defineValue{value: value, typeName: "STRING"}
	return m
}

func (m *CMake) DefineBool(key string, value bool) *CMake {
	m.Defines[key] = defineValue{value: onOff(value), typeName: "BOOL"}
	return m
}

func (m *CMake) Env(key, value string) {
	m.env.Define(key, value)
}

// Use configures the build environment to use the specified dependency.
func (m *CMake) Use(dep *recipe.Dependency) {
	buildsys.UseDependency(m.env, dep, runtime.GOOS)
}

func (m *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(m.buildDir, 0o755); err != nil {
		return err
	}
	cmakeArgs := []string{"-S", m.sourceDir, "-B", m.buildDir}
	if m.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", m.generator)
	}
	if m.installDir != "" {
		m.Define("CMAKE_INSTALL_PREFIX", m.installDir)
	}
	if m.toolchain != "" {
		m.Define("CMAKE_TOOLCHAIN_FILE", m.toolchain)
	}
	if m.buildType != "" {
		m.Define("CMAKE_BUILD_TYPE", m.buildType)
	}
	cmakeArgs = append(cmakeArgs, m.definesArgs()...)
	cmakeArgs = append(cmakeArgs, args...)
	return m.run(ctx, "cmake", cmakeArgs)
}

func (m *CMake) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"--build", m.buildDir}
	if m.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", m.buildType)
	}
	cmdArgs = append(cmdArgs, "--parallel", strconv.Itoa(m.c.Parallel()))
	cmdArgs = append(cmdArgs, args...)
	return m.run(ctx, "cmake", cmdArgs)
}

func (m *CMake) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"--install", m.buildDir}
	if m.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", m.buildType)
	}
	if m.installDir != "" {
		cmdArgs = append(cmdArgs, "--prefix", m.installDir)
	}
	cmdArgs = append(cmdArgs, args...)
	return m.run(ctx, "cmake", cmdArgs)
}

// Test runs ctest in the build directory under the context's Runtime
// environment. Without args it prints the output of failing tests.
func (m *CMake) Test(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		args = []string{"--output-on-failure"}
	}
	cmdArgs := append([]string{}, args...)
	if m.buildType != "" {
		cmdArgs = append(cmdArgs, "-C", m.buildType)
	}
	extra := append(m.c.Runtime.Environ(), m.env.Environ()...)
	return m.c.RunEnv(ctx, m.buildDir, extra, "ctest", cmdArgs...)
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (m *CMake) OutputDir() string {
	if m.installDir != "" {
		return m.installDir
	}
	return m.buildDir
}

func (m *CMake) definesArgs() []string {
	if len(m.Defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.Defines))
	for k := range m.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		def := m.Defines[k]
		if def.typeName != "" {
			args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
			continue
		}
		args = append(args, "-D"+k+"="+def.value)
	}
	return args
}

func (m *CMake) run(ctx context.Context, name string, args []string) error {
	return m.c.RunEnv(ctx, m.buildDir, m.env.Environ(), name, args...)
}

func writeFile(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, name), data, 0o644)
}
