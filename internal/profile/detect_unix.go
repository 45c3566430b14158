//go:build unix

package profile

import (
	"golang.org/x/sys/unix"

	"github.com/goplus/llarhub/recipe"
)

var systems = map[string]string{
	"Linux":   recipe.Linux,
	"Darwin":  recipe.Macos,
	"FreeBSD": recipe.FreeBSD,
}

var machines = map[string]string{
	"x86_64":  "x86_64",
	"amd64":   "x86_64",
	"i686":    "x86",
	"i386":    "x86",
	"aarch64": "armv8",
	"arm64":   "armv8",
	"armv7l":  "armv7hf",
	"ppc64le": "ppc64le",
	"ppc64":   "ppc64",
	"s390x":   "s390x",
	"riscv64": "riscv64",
}

func hostPlatform() (osName, arch string) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return fallbackPlatform()
	}
	sys := unix.ByteSliceToString(uts.Sysname[:])
	machine := unix.ByteSliceToString(uts.Machine[:])
	osName, ok := systems[sys]
	if !ok {
		return fallbackPlatform()
	}
	arch, ok = machines[machine]
	if !ok {
		_, arch = fallbackPlatform()
	}
	return osName, arch
}
