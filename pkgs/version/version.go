// Package version compares package versions and checks them against
// simple range constraints such as ">=5 <13".
package version

import (
	"fmt"
	"strings"

	"github.com/goplus/llarhub/pkgs/gnu"
	"golang.org/x/mod/semver"
)

// Compare returns -1, 0 or +1. Versions that are both valid semantic
// versions (with or without a leading "v") use semver precedence, so
// prereleases sort before releases. Anything else uses GNU ordering.
func Compare(a, b string) int {
	sa, sb := canonical(a), canonical(b)
	if semver.IsValid(sa) && semver.IsValid(sb) {
		return semver.Compare(sa, sb)
	}
	return gnu.Compare(a, b)
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// Check reports whether v satisfies every clause of constraint. Clauses
// are separated by spaces or commas; each is an operator (>=, <=, >, <,
// ==, =, !=) followed by a version. A bare version means ==.
func Check(v, constraint string) (bool, error) {
	clauses := strings.FieldsFunc(constraint, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(clauses) == 0 {
		return false, fmt.Errorf("empty version constraint")
	}
	for _, clause := range clauses {
		op, want := splitOp(clause)
		if want == "" {
			return false, fmt.Errorf("invalid version constraint %q", clause)
		}
		c := Compare(v, want)
		var ok bool
		switch op {
		case ">=":
			ok = c >= 0
		case "<=":
			ok = c <= 0
		case ">":
			ok = c > 0
		case "<":
			ok = c < 0
		case "!=":
			ok = c != 0
		default:
			ok = c == 0
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func splitOp(clause string) (op, v string) {
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if strings.HasPrefix(clause, op) {
			return op, strings.TrimPrefix(clause, op)
		}
	}
	return "==", clause
}
