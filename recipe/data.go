package recipe

import (
	"fmt"
	"slices"

	"github.com/goplus/llarhub/pkgs/version"
	"gopkg.in/yaml.v3"
)

// Source describes where the sources of one version come from: either
// one or more archive mirrors, or a git repository at a ref.
type Source struct {
	URLs      URLList `yaml:"url"`
	SHA256    string  `yaml:"sha256"`
	StripRoot *bool   `yaml:"strip_root"`
	Git       string  `yaml:"git"`
	Ref       string  `yaml:"ref"`
}

// ShouldStripRoot reports whether the single top-level directory of the
// archive is dropped on extraction. It defaults to true.
func (s Source) ShouldStripRoot() bool {
	return s.StripRoot == nil || *s.StripRoot
}

// URLList accepts either a single string or a list of mirrors.
type URLList []string

func (u *URLList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*u = URLList{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*u = list
		return nil
	}
	return fmt.Errorf("line %d: url must be a string or a list", value.Line)
}

// Patch is a patch file applied after sources are retrieved.
type Patch struct {
	File        string `yaml:"patch_file"`
	Description string `yaml:"patch_description"`
}

// Data is a recipe's per-version source table, kept in data.yml next to
// the recipe.
type Data struct {
	Sources map[string]Source  `yaml:"sources"`
	Patches map[string][]Patch `yaml:"patches"`
}

// ParseData decodes a data.yml document.
func ParseData(b []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse data.yml: %w", err)
	}
	for ver, src := range d.Sources {
		if len(src.URLs) == 0 && src.Git == "" {
			return nil, fmt.Errorf("parse data.yml: version %s has neither url nor git", ver)
		}
		if src.Git != "" && src.Ref == "" {
			return nil, fmt.Errorf("parse data.yml: version %s: git source needs a ref", ver)
		}
		if src.SHA256 != "" && !isSHA256(src.SHA256) {
			return nil, fmt.Errorf("parse data.yml: version %s: sha256 %q is not a hex sha256 digest", ver, src.SHA256)
		}
	}
	return &d, nil
}

func isSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// MustParseData is ParseData for embedded files; it panics on error.
func MustParseData(b []byte) *Data {
	d, err := ParseData(b)
	if err != nil {
		panic(err)
	}
	return d
}

// Source returns the source entry of a version.
func (d *Data) Source(ver string) (Source, error) {
	if d == nil {
		return Source{}, fmt.Errorf("no source data")
	}
	src, ok := d.Sources[ver]
	if !ok {
		return Source{}, fmt.Errorf("no sources for version %s", ver)
	}
	return src, nil
}

// Versions returns every version with sources, oldest first.
func (d *Data) Versions() []string {
	if d == nil {
		return nil
	}
	vers := make([]string, 0, len(d.Sources))
	for v := range d.Sources {
		vers = append(vers, v)
	}
	slices.SortFunc(vers, version.Compare)
	return vers
}
