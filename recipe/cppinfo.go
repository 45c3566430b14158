package recipe

import (
	"encoding/json"
	"slices"
	"sort"
)

// Well-known CppInfo properties.
const (
	CMakeFileName   = "cmake_file_name"
	CMakeTargetName = "cmake_target_name"
	PkgConfigName   = "pkg_config_name"
)

// CppInfo is what a package exposes to its consumers: where headers,
// libraries and executables live and which libraries to link.
// Directories are relative to the package folder.
type CppInfo struct {
	IncludeDirs []string          `json:"includedirs"`
	LibDirs     []string          `json:"libdirs"`
	BinDirs     []string          `json:"bindirs"`
	ResDirs     []string          `json:"resdirs,omitempty"`
	Libs        []string          `json:"libs,omitempty"`
	SystemLibs  []string          `json:"system_libs,omitempty"`
	Defines     []string          `json:"defines,omitempty"`
	Requires    []string          `json:"requires,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`

	Components map[string]*CppInfo `json:"components,omitempty"`
	order      []string
}

// NewCppInfo returns a CppInfo with the default include/lib/bin layout.
func NewCppInfo() *CppInfo {
	return &CppInfo{
		IncludeDirs: []string{"include"},
		LibDirs:     []string{"lib"},
		BinDirs:     []string{"bin"},
	}
}

// SetProperty sets a generator property such as cmake_target_name.
func (c *CppInfo) SetProperty(key, value string) {
	if c.Properties == nil {
		c.Properties = map[string]string{}
	}
	c.Properties[key] = value
}

// Property returns a property value or "".
func (c *CppInfo) Property(key string) string {
	return c.Properties[key]
}

// Component returns the named component, creating it on first use.
func (c *CppInfo) Component(name string) *CppInfo {
	if comp, ok := c.Components[name]; ok {
		return comp
	}
	if c.Components == nil {
		c.Components = map[string]*CppInfo{}
	}
	comp := NewCppInfo()
	c.Components[name] = comp
	c.order = append(c.order, name)
	return comp
}

// ComponentNames returns component names in declaration order.
func (c *CppInfo) ComponentNames() []string {
	return slices.Clone(c.order)
}

type plainCppInfo CppInfo

type cppInfoJSON struct {
	*plainCppInfo
	Order []string `json:"component_order,omitempty"`
}

// MarshalJSON keeps the component declaration order.
func (c *CppInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(cppInfoJSON{plainCppInfo: (*plainCppInfo)(c), Order: c.order})
}

func (c *CppInfo) UnmarshalJSON(b []byte) error {
	aux := cppInfoJSON{plainCppInfo: (*plainCppInfo)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.order = nil
	for _, name := range aux.Order {
		if _, ok := c.Components[name]; ok && !slices.Contains(c.order, name) {
			c.order = append(c.order, name)
		}
	}
	var rest []string
	for name := range c.Components {
		if !slices.Contains(c.order, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	c.order = append(c.order, rest...)
	return nil
}

// Aggregate merges the root info and every component into one flat
// CppInfo, keeping first-seen order and dropping duplicates.
func (c *CppInfo) Aggregate() *CppInfo {
	out := &CppInfo{}
	add := func(info *CppInfo) {
		out.IncludeDirs = appendUnique(out.IncludeDirs, info.IncludeDirs...)
		out.LibDirs = appendUnique(out.LibDirs, info.LibDirs...)
		out.BinDirs = appendUnique(out.BinDirs, info.BinDirs...)
		out.ResDirs = appendUnique(out.ResDirs, info.ResDirs...)
		out.Libs = appendUnique(out.Libs, info.Libs...)
		out.SystemLibs = appendUnique(out.SystemLibs, info.SystemLibs...)
		out.Defines = appendUnique(out.Defines, info.Defines...)
	}
	if len(c.Components) == 0 {
		add(c)
		return out
	}
	for _, name := range c.order {
		add(c.Components[name])
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// PackageInfo is filled by a recipe's PackageInfo hook.
type PackageInfo struct {
	CppInfo *CppInfo `json:"cpp_info"`
	// BuildEnv is applied to the build environment of consumers that
	// declare this package as a tool requirement.
	BuildEnv *Env `json:"buildenv,omitempty"`
	// RunEnv is applied when running consumers' executables.
	RunEnv *Env `json:"runenv,omitempty"`
}

// NewPackageInfo returns an empty PackageInfo with default directories.
func NewPackageInfo() *PackageInfo {
	return &PackageInfo{CppInfo: NewCppInfo(), BuildEnv: &Env{}, RunEnv: &Env{}}
}
