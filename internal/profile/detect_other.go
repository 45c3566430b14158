//go:build !unix

package profile

func hostPlatform() (osName, arch string) {
	return fallbackPlatform()
}
