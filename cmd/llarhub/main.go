// Command llarhub builds and tests the packages of the llarhub recipe
// collection.
package main

import (
	"github.com/goplus/llarhub/cmd/llarhub/internal"
	_ "github.com/goplus/llarhub/recipes/all"
)

func main() {
	internal.Execute()
}
