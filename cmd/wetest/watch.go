package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/display"
	"github.com/ormasoftchile/wetest/pkg/scenario"
)

// --- watch ---

func (a *app) watchCmd() *cobra.Command {
	var (
		selection string
		debounce  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch FILE...",
		Short: "Validate and list scenario files again each time one of them changes",
		Args:  requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			check := func() []string {
				fmt.Fprintf(out, "%s  checking %d file(s)\n", time.Now().Format("15:04:05"), len(args))
				files, err := a.refresh(out, args, selection)
				if err != nil {
					fmt.Fprintf(out, "%s %v\n", display.GlyphFailed, err)
				}
				return files
			}

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create file watcher: %w", err)
			}
			defer w.Close()
			return watchLoop(cmd.Context(), w, debounce, check, a.logger)
		},
	}
	cmd.Flags().StringVar(&selection, "select", "", "Keep only the tests matching this expression")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Wait this long after the last change before checking again")
	return cmd
}

// refresh validates and lists the files. It returns every file of the
// include trees that loaded, so includes are watched too.
func (a *app) refresh(out io.Writer, paths []string, selection string) ([]string, error) {
	docs, err := a.load(paths)
	files := append([]string(nil), paths...)
	for _, d := range docs {
		d.Walk(func(c *scenario.Document) { files = append(files, c.Path) })
	}
	if err != nil {
		return files, err
	}
	s, err := a.assemble(out, docs, selection)
	if s == nil {
		return files, err
	}
	if derr := display.Suite(out, s); derr != nil {
		return files, derr
	}
	return files, err
}

// watchLoop calls check once, then again after changes to the files it
// returned settle for debounce. It returns when ctx is done.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, check func() []string, log *zap.Logger) error {
	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	track := func(files []string) {
		clear(watched)
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				continue
			}
			watched[abs] = true
			// editors often replace files, so watch the directory
			dir := filepath.Dir(abs)
			if dirs[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				log.Warn("Cannot watch directory", zap.String("dir", dir), zap.Error(err))
				continue
			}
			dirs[dir] = true
		}
	}
	track(check())

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("File changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			track(check())

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("File watcher error", zap.Error(err))
		}
	}
}
