// Package epicsdb extracts records from EPICS database (.db) files so their
// PV names can be listed next to the ones a scenario uses.
package epicsdb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extension of the files FromPaths collects from directories.
const Extension = ".db"

var (
	recordRe = regexp.MustCompile(`record\(\s*(\S+)\s*,\s*["'](\S+)["']\s*\)`)
	fieldRe  = regexp.MustCompile(`field\(\s*(\S+)\s*,\s*(.+)\s*\)`)
)

// Record is one record block of a database file.
type Record struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
	Source string            `json:"source"`
	Line   int               `json:"line"`
}

// ParsingError reports a line that could not be read as a record or field.
type ParsingError struct {
	File string
	Line int
	Msg  string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

type options struct {
	logger   *zap.Logger
	parallel int
}

// Option configures parsing.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParallel bounds the number of files parsed at once.
func WithParallel(n int) Option {
	return func(o *options) { o.parallel = n }
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop(), parallel: 4}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// ParseFile parses the database file at path.
func ParseFile(path string, opts ...Option) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db file: %w", err)
	}
	defer f.Close()
	return Parse(f, path, opts...)
}

// Parse reads records from r. name labels the records and errors.
func Parse(r io.Reader, name string, opts ...Option) ([]Record, error) {
	o := newOptions(opts)
	log := o.logger.With(zap.String("file", name))

	var (
		records []Record
		current *Record
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		rec := recordRe.FindStringSubmatch(line)
		fld := fieldRe.FindStringSubmatch(line)
		if rec == nil && strings.HasPrefix(trimmed, "record(") {
			return nil, &ParsingError{File: name, Line: n, Msg: "Did not find the new record in line:\n" + line}
		}
		if fld == nil && strings.HasPrefix(trimmed, "field(") {
			return nil, &ParsingError{File: name, Line: n, Msg: "Did not find the new field in line:\n" + line}
		}

		if rec != nil {
			records = append(records, Record{Type: rec[1], Name: rec[2], Source: name, Line: n})
			current = &records[len(records)-1]
		}
		if fld != nil {
			if current == nil {
				return nil, &ParsingError{File: name, Line: n, Msg: "Found a field but did not start a record yet."}
			}
			if current.Fields == nil {
				current.Fields = make(map[string]string)
			}
			if _, ok := current.Fields[fld[1]]; ok {
				log.Warn("Field redefined in same record", zap.Int("line", n), zap.String("field", fld[1]))
			}
			current.Fields[fld[1]] = unquote(strings.TrimSpace(fld[2]))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return records, nil
}

// Files expands paths into database files: files are kept, directories are
// walked for *.db. Paths that cannot be explored are logged and skipped.
func Files(paths []string, opts ...Option) ([]string, error) {
	o := newOptions(opts)
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err != nil:
			o.logger.Error("Unable to explore", zap.String("path", p), zap.Error(err))
		case !info.IsDir():
			files = append(files, p)
		default:
			err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(d.Name(), Extension) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", p, err)
			}
		}
	}
	if len(files) == 0 {
		o.logger.Error("No DB file found with provided paths")
	}
	return files, nil
}

// FromPaths parses every database file found under paths. Records keep the
// order of the files.
func FromPaths(ctx context.Context, paths []string, opts ...Option) ([]Record, error) {
	o := newOptions(opts)
	files, err := Files(paths, opts...)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("DB files found", zap.Strings("files", files))

	parsed := make([][]Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o.logger.Info("Processing file", zap.String("file", f))
			recs, err := ParseFile(f, opts...)
			if err != nil {
				return err
			}
			parsed[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for _, recs := range parsed {
		out = append(out, recs...)
	}
	o.logger.Info("Records found", zap.Int("count", len(out)))
	return out, nil
}

// Names returns the record names in order.
func Names(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
