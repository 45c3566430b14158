package internal

import (
	"fmt"
	"path/filepath"

	"github.com/goplus/llarhub/internal/env"
	"github.com/goplus/llarhub/internal/profile"
	"github.com/spf13/cobra"
)

func newProfileCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage build profiles",
	}

	var save string
	detect := &cobra.Command{
		Use:   "detect",
		Short: "Detect a profile for this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Detect()
			if err != nil {
				return err
			}
			if save == "" {
				b, err := p.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			dir, err := env.ProfilesDir()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, save+".toml")
			if err := p.Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	detect.Flags().StringVar(&save, "save", "", "Save the profile under this name")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the profile selected with -p",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Resolve(g.profile)
			if err != nil {
				return err
			}
			b, err := p.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.AddCommand(detect, show)
	return cmd
}
