package main

import (
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/display"
	"github.com/ormasoftchile/wetest/pkg/macros"
	"github.com/ormasoftchile/wetest/pkg/scenario"
	"github.com/ormasoftchile/wetest/pkg/suite"
	"github.com/ormasoftchile/wetest/pkg/validate"
)

// notSelected is the skip reason of units left out by --select.
const notSelected = "Test not selected."

// parseMacros reads NAME=VALUE definitions in command line order. A name
// given twice keeps its first value.
func parseMacros(raw []string, log *zap.Logger) ([]macros.Def, error) {
	defs := make([]macros.Def, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for _, m := range raw {
		name, val, ok := strings.Cut(m, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, usagef("invalid --macro %q: expected NAME=VALUE", m)
		}
		if i, dup := seen[name]; dup {
			log.Error("Macro already defined on the command line", zap.String("macro", name), zap.Any("kept", defs[i].Value), zap.String("ignored", val))
			continue
		}
		seen[name] = len(defs)
		defs = append(defs, macros.Def{Name: name, Value: val})
	}
	return defs, nil
}

// load reads every root file with the command line macros.
func (a *app) load(paths []string) ([]*scenario.Document, error) {
	defs, err := parseMacros(a.macros, a.logger)
	if err != nil {
		return nil, err
	}
	docs := make([]*scenario.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := scenario.Load(p,
			scenario.WithMacros(defs...),
			scenario.WithPropagate(a.propagate),
			scenario.WithLogger(a.logger.Named("loader")),
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (a *app) validator() (*validate.Validator, error) {
	opts := []validate.Option{validate.WithLogger(a.logger.Named("validate"))}
	if a.schema != "" {
		opts = append(opts, validate.WithSchemaFile(a.schema))
	}
	return validate.New(opts...)
}

// check validates every file tree. Reports are written to w, all of them
// when verbose, otherwise only the ones with issues.
func (a *app) check(w io.Writer, docs []*scenario.Document, verbose bool) error {
	v, err := a.validator()
	if err != nil {
		return err
	}
	var all validate.Reports
	for _, doc := range docs {
		all = append(all, v.ValidateTree(doc)...)
	}
	shown := all
	if !verbose {
		shown = nil
		for _, r := range all {
			if !r.Valid() {
				shown = append(shown, r)
			}
		}
	}
	if err := display.Reports(w, shown); err != nil {
		return err
	}
	if all.Fatal() {
		return errMandatory
	}
	return nil
}

// prepare loads, validates and assembles the files, then applies the
// selection expression when one is given.
func (a *app) prepare(errw io.Writer, paths []string, selection string) (*suite.Suite, error) {
	docs, err := a.load(paths)
	if err != nil {
		return nil, err
	}
	return a.assemble(errw, docs, selection)
}

// assemble validates loaded documents and builds the suite.
func (a *app) assemble(errw io.Writer, docs []*scenario.Document, selection string) (*suite.Suite, error) {
	if err := a.check(errw, docs, false); err != nil {
		return nil, err
	}
	s, err := suite.Assemble(docs, suite.WithLogger(a.logger.Named("suite")))
	if err != nil {
		return nil, err
	}
	if selection != "" {
		ids, err := s.SelectWhere(selection, notSelected)
		if err != nil {
			return nil, usagef("--select: %v", err)
		}
		a.logger.Info("Applied selection", zap.String("select", selection), zap.Int("matched", len(ids)))
	}
	if len(s.Selected()) == 0 {
		return s, errNothingToRun
	}
	return s, nil
}
