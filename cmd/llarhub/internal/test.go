package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTestCmd(g *globals) *cobra.Command {
	var options []string
	cmd := &cobra.Command{
		Use:   "test name/version",
		Short: "Create a package and run its test project",
		Args:  cobra.ExactArgs(1),
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
			pkg, err := b.Test(ctx, ref, opts)
			g.printDryRun(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to test %s: %w", ref, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): test passed\n", ref, pkg.ID)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Option of the package, name=value (repeatable)")
	return cmd
}
