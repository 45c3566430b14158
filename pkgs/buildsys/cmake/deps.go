package cmake

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/goplus/llarhub/recipe"
)

// Deps writes a <FileName>Config.cmake per host dependency, declaring
// INTERFACE IMPORTED targets for find_package(<FileName> CONFIG).
type Deps struct {
	c     *recipe.Context
	props map[string]map[string]string
}

// NewDeps returns the dependency generator of c.
func NewDeps(c *recipe.Context) *Deps {
	return &Deps{c: c, props: map[string]map[string]string{}}
}

// SetProperty overrides a property of a dependency, e.g. its
// cmake_file_name, without touching the dependency's own package info.
func (d *Deps) SetProperty(dep, key, value string) {
	if d.props[dep] == nil {
		d.props[dep] = map[string]string{}
	}
	d.props[dep][key] = value
}

func (d *Deps) property(dep string, info *recipe.CppInfo, key string) string {
	if v, ok := d.props[dep][key]; ok {
		return v
	}
	return info.Property(key)
}

// FileName returns the find_package name of a dependency.
func (d *Deps) FileName(name string, info *recipe.CppInfo) string {
	if v := d.property(name, info, recipe.CMakeFileName); v != "" {
		return v
	}
	return name
}

// TargetName returns the global target of a dependency.
func (d *Deps) TargetName(name string, info *recipe.CppInfo) string {
	if v := d.property(name, info, recipe.CMakeTargetName); v != "" {
		return v
	}
	return name + "::" + name
}

type targetData struct {
	Name        string
	IncludeDirs []string
	LinkDirs    []string
	Libs        []string
	Defines     []string
	Requires    []string
}

type configData struct {
	FileName string
	Version  string
	Root     string
	Target   targetData
	Comps    []targetData
	// IncludeDirs are those of the package or of all its components.
	IncludeDirs []string
}

var configTmpl = template.Must(template.New("config").Parse(`# Generated by llarhub
set({{.FileName}}_FOUND TRUE)
set({{.FileName}}_VERSION "{{.Version}}")
set({{.FileName}}_ROOT "{{.Root}}")
{{range .Comps}}{{template "target" .}}{{end}}{{template "target" .Target}}
set({{.FileName}}_INCLUDE_DIRS{{range .IncludeDirs}} "{{.}}"{{end}})
set({{.FileName}}_LIBRARIES {{.Target.Name}})
{{define "target"}}
if(NOT TARGET {{.Name}})
  add_library({{.Name}} INTERFACE IMPORTED)
{{- if .IncludeDirs}}
  set_property(TARGET {{.Name}} PROPERTY INTERFACE_INCLUDE_DIRECTORIES{{range .IncludeDirs}} "{{.}}"{{end}})
{{- end}}
{{- if .LinkDirs}}
  set_property(TARGET {{.Name}} PROPERTY INTERFACE_LINK_DIRECTORIES{{range .LinkDirs}} "{{.}}"{{end}})
{{- end}}
{{- if or .Libs .Requires}}
  set_property(TARGET {{.Name}} PROPERTY INTERFACE_LINK_LIBRARIES{{range .Requires}} {{.}}{{end}}{{range .Libs}} {{.}}{{end}})
{{- end}}
{{- if .Defines}}
  set_property(TARGET {{.Name}} PROPERTY INTERFACE_COMPILE_DEFINITIONS{{range .Defines}} {{.}}{{end}})
{{- end}}
endif()
{{end}}`))

var versionTmpl = template.Must(template.New("version").Parse(`# Generated by llarhub
set(PACKAGE_VERSION "{{.Version}}")
if(PACKAGE_FIND_VERSION VERSION_GREATER PACKAGE_VERSION)
  set(PACKAGE_VERSION_COMPATIBLE FALSE)
else()
  set(PACKAGE_VERSION_COMPATIBLE TRUE)
  if(PACKAGE_FIND_VERSION STREQUAL PACKAGE_VERSION)
    set(PACKAGE_VERSION_EXACT TRUE)
  endif()
endif()
`))

// Config renders the config file of one dependency.
func (d *Deps) Config(name string, dep *recipe.Dependency) (fileName string, config, version []byte, err error) {
	info := dep.CppInfo()
	data := configData{
		FileName: d.FileName(name, info),
		Version:  dep.Ref.Version,
		Root:     filepath.ToSlash(dep.PackageFolder),
	}
	target := d.TargetName(name, info)
	if comps := info.ComponentNames(); len(comps) > 0 {
		var all []string
		for _, comp := range comps {
			ci := info.Components[comp]
			t := d.target(dep, compTarget(target, comp, ci), ci)
			for _, req := range ci.Requires {
				t.Requires = append(t.Requires, compRequire(target, req, info))
			}
			data.Comps = append(data.Comps, t)
			all = append(all, t.Name)
			for _, dir := range t.IncludeDirs {
				if !slices.Contains(data.IncludeDirs, dir) {
					data.IncludeDirs = append(data.IncludeDirs, dir)
				}
			}
		}
		data.Target = targetData{Name: target, Requires: all}
	} else {
		data.Target = d.target(dep, target, info)
		data.IncludeDirs = data.Target.IncludeDirs
	}

	var cb, vb bytes.Buffer
	if err := configTmpl.Execute(&cb, data); err != nil {
		return "", nil, nil, err
	}
	if err := versionTmpl.Execute(&vb, data); err != nil {
		return "", nil, nil, err
	}
	return data.FileName, cb.Bytes(), vb.Bytes(), nil
}

func (d *Deps) target(dep *recipe.Dependency, name string, info *recipe.CppInfo) targetData {
	join := func(dirs []string) []string {
		out := make([]string, len(dirs))
		for i, dir := range dirs {
			out[i] = filepath.ToSlash(filepath.Join(dep.PackageFolder, dir))
		}
		return out
	}
	t := targetData{
		Name:        name,
		IncludeDirs: join(info.IncludeDirs),
		LinkDirs:    join(info.LibDirs),
		Defines:     info.Defines,
	}
	t.Libs = append(t.Libs, info.Libs...)
	t.Libs = append(t.Libs, info.SystemLibs...)
	return t
}

// compTarget is the component's cmake_target_name, or <ns>::<comp> with
// the namespace of the package target.
func compTarget(pkgTarget, comp string, ci *recipe.CppInfo) string {
	if v := ci.Property(recipe.CMakeTargetName); v != "" {
		return v
	}
	ns, _, ok := strings.Cut(pkgTarget, "::")
	if !ok {
		ns = pkgTarget
	}
	return ns + "::" + comp
}

func compRequire(pkgTarget, req string, info *recipe.CppInfo) string {
	if ci, ok := info.Components[req]; ok {
		return compTarget(pkgTarget, req, ci)
	}
	// requirement on another package's component, "pkg::comp"
	return req
}

// Generate writes the config files of every host dependency.
func (d *Deps) Generate() error {
	dir := d.c.Folders.Generators
	for _, name := range d.c.DepNames() {
		fileName, config, version, err := d.Config(name, d.c.Deps[name])
		if err != nil {
			return err
		}
		if err := writeFile(dir, fileName+"Config.cmake", config); err != nil {
			return err
		}
		if err := writeFile(dir, fileName+"ConfigVersion.cmake", version); err != nil {
			return err
		}
		d.c.Logger().Debug("cmake config generated: " + fileName)
	}
	return nil
}
