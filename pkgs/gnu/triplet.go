package gnu

import "fmt"

var machines = map[string]string{
	"x86":     "i686",
	"x86_64":  "x86_64",
	"armv7":   "arm",
	"armv7hf": "arm",
	"armv8":   "aarch64",
	"ppc64le": "powerpc64le",
	"ppc64":   "powerpc64",
	"s390x":   "s390x",
	"riscv64": "riscv64",
	"mips64":  "mips64",
}

// Triplet returns the GNU configuration name for a platform, e.g.
// "x86_64-linux-gnu" for Linux on x86_64. compiler only matters on
// Windows, where gcc targets mingw.
func Triplet(os, arch, compiler string) (string, error) {
	machine, ok := machines[arch]
	if !ok {
		return "", fmt.Errorf("gnu triplet: unsupported arch %q", arch)
	}

	var system string
	switch os {
	case "Linux":
		system = "linux-gnu"
		switch arch {
		case "armv7":
			system = "linux-gnueabi"
		case "armv7hf":
			system = "linux-gnueabihf"
		}
	case "Macos":
		system = "apple-darwin"
	case "FreeBSD":
		system = "unknown-freebsd"
	case "Windows":
		if compiler == "gcc" {
			system = "w64-mingw32"
		} else {
			system = "unknown-windows"
		}
	default:
		return "", fmt.Errorf("gnu triplet: unsupported os %q", os)
	}
	return machine + "-" + system, nil
}
