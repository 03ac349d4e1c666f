package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/wetest/pkg/compiler"
	"github.com/ormasoftchile/wetest/pkg/display"
	"github.com/ormasoftchile/wetest/pkg/runner"
	"github.com/ormasoftchile/wetest/pkg/suite"
)

// --- run ---

func (a *app) runCmd() *cobra.Command {
	var (
		selection string
		pvs       []string
		links     []string
		noPause   bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Run the compiled tests against simulated process variables",
		Long: "Run the compiled tests against an in-memory set of process variables.\n" +
			"Use --pv to define readable PVs and --link to copy writes from a setter to a getter.",
		Args: requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := memoryPVs(pvs, links)
			if err != nil {
				return err
			}
			s, err := a.prepare(cmd.ErrOrStderr(), args, selection)
			if err != nil {
				return err
			}

			opts := []runner.Option{runner.WithLogger(a.logger.Named("runner"))}
			if !noPause {
				opts = append(opts, runner.WithPauser(promptPauser(cmd.InOrStdin(), cmd.ErrOrStderr())))
			}
			sum, runErr := runner.New(mem, opts...).Run(cmd.Context(), s)

			out := cmd.OutOrStdout()
			if err := display.Suite(out, s); err != nil {
				return err
			}
			if err := display.Trace(out, s); err != nil {
				return err
			}
			if err := display.RunSummary(out, sum); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if sum.Failed+sum.Errors > 0 {
				return errTestsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selection, "select", "", "Keep only the tests matching this expression")
	cmd.Flags().StringArrayVar(&pvs, "pv", nil, "Define a PV (NAME=VALUE, value read as YAML), repeatable")
	cmd.Flags().StringArrayVar(&links, "link", nil, "Copy writes of a setter to a getter (SETTER=GETTER), repeatable")
	cmd.Flags().BoolVar(&noPause, "no-pause", false, "Continue without asking when a pause policy triggers")
	return cmd
}

// memoryPVs builds the simulated PVs from --pv and --link flags.
func memoryPVs(pvs, links []string) (*runner.MemoryPVs, error) {
	initial := make(map[string]any, len(pvs))
	for _, p := range pvs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, usagef("invalid --pv %q: expected NAME=VALUE", p)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, usagef("invalid --pv %q: %v", p, err)
		}
		initial[name] = v
	}
	mem := runner.NewMemoryPVs(initial)
	for _, l := range links {
		from, to, ok := strings.Cut(l, "=")
		if !ok || from == "" || to == "" {
			return nil, usagef("invalid --link %q: expected SETTER=GETTER", l)
		}
		mem.Link(from, to, nil)
	}
	return mem, nil
}

// promptPauser asks on in whether to go on after a failure. Anything but
// q, quit or abort continues.
func promptPauser(in io.Reader, out io.Writer) runner.Pauser {
	r := bufio.NewReader(in)
	return runner.PauserFunc(func(ctx context.Context, t *compiler.TestData, res suite.Result) error {
		fmt.Fprintf(out, "%s %s: %s\nPaused. Press Enter to continue or q to abort: ", t.ID, res.Status, res.Trace)
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "q", "quit", "abort":
			return errors.New("aborted by user")
		}
		return nil
	})
}
