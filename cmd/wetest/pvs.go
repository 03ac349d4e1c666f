package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/display"
	"github.com/ormasoftchile/wetest/pkg/epicsdb"
	"github.com/ormasoftchile/wetest/pkg/naming"
	"github.com/ormasoftchile/wetest/pkg/suite"
)

// --- pvs ---

func (a *app) pvsCmd() *cobra.Command {
	var (
		dbs        []string
		namingName string
	)
	cmd := &cobra.Command{
		Use:   "pvs [FILE...]",
		Short: "Show the PVs of scenario files and EPICS databases as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(dbs) == 0 {
				return usagef("give scenario files or --db paths")
			}
			n, err := naming.New(namingName)
			if err != nil {
				return usagef("--naming: %v", err)
			}

			var names []string
			if len(dbs) > 0 {
				recs, err := epicsdb.FromPaths(cmd.Context(), dbs, epicsdb.WithLogger(a.logger.Named("epicsdb")))
				if err != nil {
					return err
				}
				names = append(names, epicsdb.Names(recs)...)
			}
			if len(args) > 0 {
				docs, err := a.load(args)
				if err != nil {
					return err
				}
				s, err := suite.Assemble(docs, suite.WithLogger(a.logger.Named("suite")))
				if err != nil {
					return err
				}
				names = append(names, scenarioPVs(s)...)
			}
			if len(names) == 0 {
				return errNothingToRun
			}
			a.logger.Info("Collected PVs", zap.Int("count", len(names)), zap.String("naming", n.Name()))
			return display.PVTree(cmd.OutOrStdout(), names, n)
		},
	}
	cmd.Flags().StringArrayVar(&dbs, "db", nil, "EPICS .db file or directory to read records from, repeatable")
	cmd.Flags().StringVar(&namingName, "naming", naming.None, "PV naming convention: None, SARAF, ESS or RDS-81346")
	return cmd
}

// scenarioPVs lists the setters and getters of every unit.
func scenarioPVs(s *suite.Suite) []string {
	var names []string
	for _, t := range s.Tests() {
		if t.Setter != "" {
			names = append(names, t.Setter)
		}
		if t.Getter != "" {
			names = append(names, t.Getter)
		}
	}
	return names
}
