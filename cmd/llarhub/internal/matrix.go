package internal

import (
	"fmt"

	"github.com/goplus/llarhub/recipe"
	"github.com/goplus/llarhub/recipes"
	"github.com/qiniu/x/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMatrixCmd(g *globals) *cobra.Command {
	var doBuild bool
	cmd := &cobra.Command{
		Use:   "matrix name/version",
		Short: "Print or build every option combination of a package",
		Long: `Matrix lists the option combinations of the recipe. With --build it creates
each of them, skipping the ones the recipe rejects, and reports every
failure at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := refArg(args)
			if err != nil {
				return err
			}
			r, err := recipes.Lookup(ref.Name)
			if err != nil {
				return err
			}
			m := recipe.OptionMatrix(r.Metadata().Options)
			combos := m.Combinations()
			if !doBuild {
				for _, combo := range combos {
					fmt.Fprintln(cmd.OutOrStdout(), combo)
				}
				return nil
			}

			b, ctx, err := g.newBuilder(cmd)
			if err != nil {
				return err
			}
			var errs errors.List
			for i, combo := range combos {
				_, opts := recipe.ParseCombination(combo)
				g.log.Info("building combination", zap.String("options", combo), zap.Int("index", i+1), zap.Int("total", len(combos)))
				pkg, err := b.Create(ctx, ref, opts)
				switch {
				case recipe.IsInvalidConfiguration(err):
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tskipped: %v\n", combo, err)
				case err != nil:
					errs.Add(fmt.Errorf("%s [%s]: %w", ref, combo, err))
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tfailed\n", combo)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", combo, pkg.ID)
				}
			}
			g.printDryRun(cmd.OutOrStdout())
			return errs.ToError()
		},
	}
	cmd.Flags().BoolVar(&doBuild, "build", false, "Create every combination")
	return cmd
}
