package internal

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the recipes and their versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range recipes.Names() {
				r, err := recipes.Lookup(name)
				if err != nil {
					return err
				}
				var versions []string
				if dp, ok := r.(recipe.DataProvider); ok {
					versions = dp.Data().Versions()
				}
				meta := r.Metadata()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, strings.Join(versions, ","), meta.PackageType, meta.License)
			}
			return w.Flush()
		},
	}
}
