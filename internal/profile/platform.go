package profile

import (
	"runtime"

	"github.com/goplus/llarhub/recipe"
)

// fallbackPlatform maps the Go target to settings values.
func fallbackPlatform() (osName, arch string) {
	switch runtime.GOOS {
	case "linux":
		osName = recipe.Linux
	case "darwin":
		osName = recipe.Macos
	case "windows":
		osName = recipe.Windows
	case "freebsd":
		osName = recipe.FreeBSD
	}
	switch runtime.GOARCH {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "x86"
	case "arm64":
		arch = "armv8"
	case "arm":
		arch = "armv7"
	case "ppc64le", "ppc64", "s390x", "riscv64":
		arch = runtime.GOARCH
	}
	return osName, arch
}
