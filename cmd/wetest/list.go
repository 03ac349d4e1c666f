package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wetest/pkg/compiler"
	"github.com/ormasoftchile/wetest/pkg/display"
	"github.com/ormasoftchile/wetest/pkg/suite"
)

// --- list ---

func (a *app) listCmd() *cobra.Command {
	var (
		selection string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list FILE...",
		Short: "Compile scenario files and list the resulting tests",
		Args:  requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.prepare(cmd.ErrOrStderr(), args, selection)
			if s == nil {
				return err
			}
			if asJSON {
				if jerr := writeJSON(cmd, s); jerr != nil {
					return jerr
				}
				return err
			}
			if derr := display.Suite(cmd.OutOrStdout(), s); derr != nil {
				return derr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&selection, "select", "", "Keep only the tests matching this expression, e.g. 'retry > 0 && kind == \"range\"'")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the compiled tests as JSON")
	return cmd
}

type listedTest struct {
	*compiler.TestData
	State  suite.State `json:"state"`
	Reason string      `json:"reason,omitempty"`
}

type listing struct {
	Title     string       `json:"title"`
	Scenarios []string     `json:"scenarios"`
	Tests     []listedTest `json:"tests"`
}

func writeJSON(cmd *cobra.Command, s *suite.Suite) error {
	out := listing{Title: s.Title}
	for _, sc := range s.Scenarios {
		out.Scenarios = append(out.Scenarios, sc.Name)
	}
	for _, e := range s.Entries() {
		out.Tests = append(out.Tests, listedTest{TestData: e.Test, State: e.State, Reason: e.Reason})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
