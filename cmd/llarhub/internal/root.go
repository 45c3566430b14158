package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/goplus/llarhub/internal/build"
	"github.com/goplus/llarhub/internal/env"
	"github.com/goplus/llarhub/internal/profile"
	"github.com/goplus/llarhub/pkgs/files"
	"github.com/goplus/llarhub/pkgs/runner"
	"github.com/goplus/llarhub/recipe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globals holds the persistent flags and what PersistentPreRunE sets up
// from them.
type globals struct {
	verbose  bool
	profile  string
	dryRun   bool
	parallel int

	log *zap.Logger
	// recorder collects the commands of a dry run.
	recorder *runner.Recorder
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "llarhub",
		Short: "llarhub builds packages from the llarhub recipes",
		Long: `llarhub resolves a recipe's requirements, builds every package that is not
in the workspace yet and tests the result with the recipe's test project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := env.LoadDotEnv(); err != nil {
				return err
			}
			cfg := zap.NewProductionConfig()
			if g.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
			}
			l, err := cfg.Build()
			if err != nil {
				return err
			}
			g.log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logs and build tool output")
	flags.StringVarP(&g.profile, "profile", "p", profile.Default, "Profile name or path")
	flags.BoolVar(&g.dryRun, "dry-run", false, "Print the commands a build would run instead of running them")
	flags.IntVarP(&g.parallel, "jobs", "j", 1, "Packages of the same depth built at once")

	rootCmd.AddCommand(
		newCreateCmd(g),
		newTestCmd(g),
		newInfoCmd(g),
		newListCmd(),
		newMatrixCmd(g),
		newProfileCmd(g),
	)
	return rootCmd
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

// newBuilder returns a builder for the selected profile and a context
// carrying the source getter.
func (g *globals) newBuilder(cmd *cobra.Command) (*build.Builder, context.Context, error) {
	prof, err := profile.Resolve(g.profile)
	if err != nil {
		return nil, nil, err
	}
	home, err := env.PackagesDir()
	if err != nil {
		return nil, nil, err
	}
	downloads, err := env.DownloadsDir()
	if err != nil {
		return nil, nil, err
	}

	var out, errOut io.Writer = io.Discard, io.Discard
	if g.verbose {
		out, errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()
	}
	var r runner.Runner = &runner.Exec{Stdout: out, Stderr: errOut, Log: g.log}
	if g.dryRun {
		g.recorder = &runner.Recorder{}
		r = g.recorder
	}
	b := build.NewBuilder(build.Config{
		Home:     home,
		Profile:  prof,
		Runner:   r,
		Log:      g.log,
		Parallel: g.parallel,
		DryRun:   g.dryRun,
		Stdout:   out,
		Stderr:   errOut,
	})
	ctx := files.WithGetter(cmd.Context(), &files.Getter{CacheDir: downloads})
	return b, ctx, nil
}

// printDryRun lists the commands a dry run recorded.
func (g *globals) printDryRun(w io.Writer) {
	if g.recorder == nil {
		return
	}
	for _, c := range g.recorder.Cmds() {
		fmt.Fprintf(w, "(cd %s && %s)\n", c.Dir, c.String())
	}
}

// parseOptions parses "name=value" option flags.
func parseOptions(kvs []string) (map[string]string, error) {
	opts := map[string]string{}
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("option %q: want name=value", kv)
		}
		opts[k] = v
	}
	return opts, nil
}

// refArg parses the single reference argument of a command.
func refArg(args []string) (recipe.Ref, error) {
	return recipe.ParseRef(args[0])
}
