package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCmd(g *globals) *cobra.Command {
	var options []string
	cmd := &cobra.Command{
		Use:   "create name/version",
		Short: "Build a package and its requirements",
		Long: `Create builds the package and every requirement missing from the workspace,
then prints the package folder.`,
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
			pkg, err := b.Create(ctx, ref, opts)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", ref, err)
			}
			g.printDryRun(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), pkg.Folder)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Option of the package, name=value (repeatable)")
	return cmd
}
