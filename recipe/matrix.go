package recipe

import (
	"sort"
	"strings"
)

// Matrix spans the configurations a recipe can be built for, for CI
// style "build every variant" runs.
type Matrix struct {
	Settings map[string][]string
	Options  map[string][]string
}

// OptionMatrix returns the matrix of every declared option value.
func OptionMatrix(defs map[string]OptionDef) Matrix {
	m := Matrix{Options: map[string][]string{}}
	for name, def := range defs {
		if len(def.Values) == 0 {
			m.Options[name] = []string{def.Default}
			continue
		}
		m.Options[name] = append([]string(nil), def.Values...)
	}
	return m
}

// Combinations returns the cartesian product of the matrix. Keys are
// walked alphabetically; each combination is "k=v,k=v", and settings are
// separated from options with "|".
func (m *Matrix) Combinations() []string {
	settings := cartesian(m.Settings)
	options := cartesian(m.Options)
	switch {
	case len(settings) == 0:
		return options
	case len(options) == 0:
		return settings
	}
	out := make([]string, 0, len(settings)*len(options))
	for _, s := range settings {
		for _, o := range options {
			out = append(out, s+"|"+o)
		}
	}
	return out
}

// CombinationCount returns len(m.Combinations()) without building them.
func (m *Matrix) CombinationCount() int {
	count := func(kvs map[string][]string) int {
		if len(kvs) == 0 {
			return 0
		}
		n := 1
		for _, v := range kvs {
			n *= len(v)
		}
		return n
	}
	s, o := count(m.Settings), count(m.Options)
	switch {
	case s == 0:
		return o
	case o == 0:
		return s
	}
	return s * o
}

func cartesian(kvs map[string][]string) []string {
	if len(kvs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(kvs))
	for k := range kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []string{""}
	for _, k := range keys {
		next := make([]string, 0, len(result)*len(kvs[k]))
		for _, prev := range result {
			for _, v := range kvs[k] {
				next = append(next, join(prev, k+"="+v))
			}
		}
		result = next
	}
	return result
}

func join(prev, kv string) string {
	if prev == "" {
		return kv
	}
	return prev + "," + kv
}

// ParseCombination splits one combination back into settings and
// option values.
func ParseCombination(combo string) (settings, options map[string]string) {
	settings, options = map[string]string{}, map[string]string{}
	sPart, oPart, hasOpts := strings.Cut(combo, "|")
	fill := func(dst map[string]string, part string) {
		for _, kv := range strings.Split(part, ",") {
			if k, v, ok := strings.Cut(kv, "="); ok {
				dst[k] = v
			}
		}
	}
	if hasOpts {
		fill(settings, sPart)
		fill(options, oPart)
		return settings, options
	}
	// a lone part is ambiguous; settings keys are the known ones
	for _, kv := range strings.Split(sPart, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if isSettingKey(k) {
			settings[k] = v
		} else {
			options[k] = v
		}
	}
	return settings, options
}

func isSettingKey(k string) bool {
	switch k {
	case "os", "arch", "build_type", "compiler", "compiler.version", "compiler.libcxx":
		return true
	}
	return false
}
