package gnu

import "testing"

func TestTriplet(t *testing.T) {
	tests := []struct {
		os, arch, compiler string
		want               string
	}{
		{"Linux", "x86_64", "gcc", "x86_64-linux-gnu"},
		{"Linux", "armv8", "gcc", "aarch64-linux-gnu"},
		{"Linux", "armv7hf", "gcc", "arm-linux-gnueabihf"},
		{"Linux", "x86", "clang", "i686-linux-gnu"},
		{"Macos", "armv8", "apple-clang", "aarch64-apple-darwin"},
		{"FreeBSD", "x86_64", "clang", "x86_64-unknown-freebsd"},
		{"Windows", "x86_64", "gcc", "x86_64-w64-mingw32"},
		{"Windows", "x86_64", "msvc", "x86_64-unknown-windows"},
	}
	for _, tt := range tests {
		got, err := Triplet(tt.os, tt.arch, tt.compiler)
		if err != nil {
			t.Errorf("Triplet(%s, %s, %s) error = %v", tt.os, tt.arch, tt.compiler, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Triplet(%s, %s, %s) = %q, want %q", tt.os, tt.arch, tt.compiler, got, tt.want)
		}
	}

	if _, err := Triplet("Linux", "sparc", "gcc"); err == nil {
		t.Error("Triplet with unknown arch: error = nil, want error")
	}
	if _, err := Triplet("Haiku", "x86_64", "gcc"); err == nil {
		t.Error("Triplet with unknown os: error = nil, want error")
	}
}
