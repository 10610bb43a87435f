package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.stdout, "Version: %s\n", Version)
			if err != nil || !verbose {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "Commit: %s\nBuild: %s\n", Commit, BuildTime)
			return err
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print commit and build time")
	return cmd
}
