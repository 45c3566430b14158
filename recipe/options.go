package recipe

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// OptionDef declares an option: its allowed values and its default.
type OptionDef struct {
	Values  []string
	Default string
}

// BoolOption declares a True/False option.
func BoolOption(def bool) OptionDef {
	return OptionDef{Values: []string{"True", "False"}, Default: formatBool(def)}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "1", "on", "yes":
		return true, true
	case "false", "0", "off", "no":
		return false, true
	}
	return false, false
}

// Options holds the current option values of a package.
type Options struct {
	defs   map[string]OptionDef
	values map[string]string
}

// NewOptions returns options set to their defaults.
func NewOptions(defs map[string]OptionDef) *Options {
	o := &Options{defs: map[string]OptionDef{}, values: map[string]string{}}
	for name, def := range defs {
		o.defs[name] = def
		o.values[name] = def.Default
	}
	return o
}

// Has reports whether the option exists (it may have been removed).
func (o *Options) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Set assigns a value, rejecting undeclared options and values outside
// the declared set. Boolean spellings are normalized to True/False.
func (o *Options) Set(name, value string) error {
	def, ok := o.defs[name]
	if !ok {
		return fmt.Errorf("option %q does not exist", name)
	}
	if _, ok := o.values[name]; !ok {
		return fmt.Errorf("option %q was removed by the recipe", name)
	}
	if slices.Equal(def.Values, []string{"True", "False"}) {
		b, ok := parseBool(value)
		if !ok {
			return fmt.Errorf("option %q: %q is not a boolean", name, value)
		}
		value = formatBool(b)
	}
	if len(def.Values) > 0 && !slices.Contains(def.Values, value) {
		return fmt.Errorf("option %q: %q is not one of %v", name, value, def.Values)
	}
	o.values[name] = value
	return nil
}

// Get returns the value of an option, or "" if absent.
func (o *Options) Get(name string) string {
	return o.values[name]
}

// Bool returns the boolean value of an option. Absent options are false.
func (o *Options) Bool(name string) bool {
	b, _ := parseBool(o.values[name])
	return b
}

// Remove drops an option, e.g. fPIC for shared or header-only builds.
func (o *Options) Remove(name string) {
	delete(o.values, name)
}

// Names returns the present option names sorted.
func (o *Options) Names() []string {
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Defs returns the option declarations.
func (o *Options) Defs() map[string]OptionDef {
	return o.defs
}

// Clone returns an independent copy.
func (o *Options) Clone() *Options {
	c := &Options{defs: o.defs, values: make(map[string]string, len(o.values))}
	for k, v := range o.values {
		c.values[k] = v
	}
	return c
}

// String returns a canonical, sorted "k=v,k=v" form.
func (o *Options) String() string {
	names := o.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + o.values[n]
	}
	return strings.Join(parts, ",")
}
