package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// --- validate ---

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate scenario files and the files they include",
		Args:  requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.load(args)
			if err != nil {
				return err
			}
			if err := a.check(cmd.OutOrStdout(), docs, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) validated\n", len(docs))
			return nil
		},
	}
}
