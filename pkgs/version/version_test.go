package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"12.2.0", "5", 1},
		{"1.0.0-rc1", "1.0.0", -1},
		{"v1.2.3", "1.2.3", 0},
		{"3.5", "3.10", -1},
		{"cci.20220909", "cci.20210101", 1},
		{"2.38", "2.38", 0},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		v, constraint string
		want          bool
	}{
		{"12", ">=5", true},
		{"4.9", ">=5", false},
		{"5", ">=5", true},
		{"3.5", ">=3.5", true},
		{"1.55.0", ">=1.53.0 <2", true},
		{"2.0.1", ">=1.53.0, <2", false},
		{"1.2", "1.2", true},
		{"1.2", "!=1.2", false},
		{"1.3", "=1.3", true},
	}
	for _, tt := range tests {
		got, err := Check(tt.v, tt.constraint)
		if err != nil {
			t.Errorf("Check(%q, %q) error = %v", tt.v, tt.constraint, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Check(%q, %q) = %v, want %v", tt.v, tt.constraint, got, tt.want)
		}
	}

	for _, bad := range []string{"", ">=", " , "} {
		if _, err := Check("1.0", bad); err == nil {
			t.Errorf("Check(1.0, %q) error = nil, want error", bad)
		}
	}
}
