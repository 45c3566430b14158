package profile

import (
	"os"
	"os/exec"
	"strings"

	"github.com/goplus/llarhub/recipe"
)

// output runs a command and returns its trimmed stdout.
var output = func(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// Detect builds a Release profile for the host: platform from the
// kernel, compiler from $CC or cc.
func Detect() (*Profile, error) {
	osName, arch := hostPlatform()
	s := recipe.Settings{OS: osName, Arch: arch, BuildType: recipe.Release}
	s.Compiler = detectCompiler(osName)
	p := &Profile{Settings: s}
	if cc := os.Getenv("CC"); cc != "" {
		p.BuildEnv = map[string]string{"CC": cc}
		if cxx := os.Getenv("CXX"); cxx != "" {
			p.BuildEnv["CXX"] = cxx
		}
	}
	return p, nil
}

func detectCompiler(osName string) recipe.Compiler {
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	banner, err := output(cc, "--version")
	if err != nil {
		return recipe.Compiler{}
	}
	version, _ := output(cc, "-dumpversion")

	var c recipe.Compiler
	first, _, _ := strings.Cut(banner, "\n")
	switch {
	case strings.Contains(first, "Apple clang"):
		c = recipe.Compiler{Name: "apple-clang", Libcxx: "libc++"}
	case strings.Contains(first, "clang"):
		c = recipe.Compiler{Name: "clang", Libcxx: "libstdc++11"}
		if osName == recipe.Macos || osName == recipe.FreeBSD {
			c.Libcxx = "libc++"
		}
	case strings.Contains(first, "gcc"), strings.Contains(first, "GCC"), strings.Contains(banner, "Free Software Foundation"):
		c = recipe.Compiler{Name: "gcc", Libcxx: "libstdc++11"}
	default:
		return recipe.Compiler{}
	}
	c.Version = majorVersion(c.Name, version)
	return c
}

// majorVersion keeps what identifies an ABI: the major version for gcc
// 5 and later and for clang, major.minor otherwise.
func majorVersion(compiler, v string) string {
	major, rest, _ := strings.Cut(v, ".")
	if compiler == "gcc" && major < "5" && len(major) == 1 {
		minor, _, _ := strings.Cut(rest, ".")
		if minor != "" {
			return major + "." + minor
		}
	}
	return major
}
