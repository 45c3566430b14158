package recipes

import (
	"slices"
	"strings"
	"testing"

	"github.com/goplus/llarhub/recipe"
)

type stub struct{ name string }

func (s stub) Metadata() recipe.Metadata {
	return recipe.Metadata{Name: s.name}
}

func TestRegisterLookup(t *testing.T) {
	Register("zz-stub-b", func() recipe.Recipe { return stub{"zz-stub-b"} })
	Register("zz-stub-a", func() recipe.Recipe { return stub{"zz-stub-a"} })

	r, err := Lookup("zz-stub-a")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Metadata().Name; got != "zz-stub-a" {
		t.Fatalf("Lookup(zz-stub-a).Name = %q, want zz-stub-a", got)
	}
	if !Has("zz-stub-b") || Has("zz-missing") {
		t.Fatal("Has reports wrong membership")
	}

	names := Names()
	i, j := slices.Index(names, "zz-stub-a"), slices.Index(names, "zz-stub-b")
	if i < 0 || j != i+1 {
		t.Fatalf("Names() = %v, want sorted with both stubs", names)
	}

	if _, err := Lookup("zz-missing"); err == nil || !strings.Contains(err.Error(), "unknown recipe") {
		t.Fatalf("Lookup(zz-missing) error = %v", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("zz-dup", func() recipe.Recipe { return stub{"zz-dup"} })
	defer func() {
		if recover() == nil {
			t.Fatal("second Register did not panic")
		}
	}()
	Register("zz-dup", func() recipe.Recipe { return stub{"zz-dup"} })
}
