// Package all links every recipe of the repository into a binary.
package all

import (
	_ "github.com/goplus/llarhub/recipes/boost"
	_ "github.com/goplus/llarhub/recipes/gcc"
	_ "github.com/goplus/llarhub/recipes/gfortran"
	_ "github.com/goplus/llarhub/recipes/glibc"
	_ "github.com/goplus/llarhub/recipes/mlpack"
)
