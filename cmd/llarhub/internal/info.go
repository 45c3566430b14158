package internal

import (
	"encoding/json"

	"github.com/goplus/llarhub/internal/build"
	"github.com/goplus/llarhub/recipe"
	"github.com/spf13/cobra"
)

// packageJSON is what info prints.
type packageJSON struct {
	Ref       string              `json:"ref"`
	PackageID string              `json:"package_id"`
	Folder    string              `json:"folder"`
	Settings  recipe.Settings     `json:"settings"`
	Options   map[string]string   `json:"options,omitempty"`
	Prebuilt  bool                `json:"prebuilt,omitempty"`
	Cached    bool                `json:"cached"`
	Info      *recipe.PackageInfo `json:"info,omitempty"`
}

func toJSON(pkg *build.Package) *packageJSON {
	out := &packageJSON{
		Ref:       pkg.Ref.String(),
		PackageID: pkg.ID,
		Folder:    pkg.Folder,
		Settings:  pkg.Settings,
		Prebuilt:  pkg.Prebuilt,
		Cached:    pkg.Cached,
		Info:      pkg.Info,
	}
	if names := pkg.Options.Names(); len(names) > 0 {
		out.Options = make(map[string]string, len(names))
		for _, n := range names {
			out.Options[n] = pkg.Options.Get(n)
		}
	}
	return out
}

func newInfoCmd(g *globals) *cobra.Command {
	var options []string
	cmd := &cobra.Command{
		Use:   "info name/version",
		Short: "Print the package ID and package info as JSON",
		Long: `Info resolves the package without building it. The package info comes from
the workspace when the package was created, from the recipe otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := refArg(args)
			if err != nil {
				return err
			}
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}
			b, ctx, err := g.newBuilder(cmd)
			if err != nil {
				return err
			}
			pkg, err := b.Info(ctx, ref, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(toJSON(pkg))
		},
	}
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Option of the package, name=value (repeatable)")
	return cmd
}
