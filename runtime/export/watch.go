package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for a burst of changes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Run discovers units, exports them and writes the bundle to sink. A nil
// sink skips the write.
func (e *Exporter) Run(ctx context.Context, opts Options, sink Sink) (*Report, error) {
	units, err := Discover(opts)
	if err != nil {
		return nil, err
	}
	rep, err := e.Export(ctx, units)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		if err := sink.Write(ctx, rep.Bundle); err != nil {
			return nil, fmt.Errorf("write bundle: %w", err)
		}
	}
	return rep, nil
}

// Watch runs an export, then runs it again each time a source below one of
// the selected directories changes, until ctx is done. Failed re-exports
// are logged and do not stop the watch.
func (e *Exporter) Watch(ctx context.Context, opts Options, sink Sink, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	for _, k := range selected(opts) {
		if err := addTree(w, opts.dir(k)); err != nil {
			return err
		}
	}
	if _, err := e.Run(ctx, opts, sink); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						e.cfg.logger.Warn("watch directory", "path", ev.Name, "error", err)
					}
					timer.Reset(debounce)
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, phpExt) || opts.excluded(ev.Name) {
				continue
			}
			e.cfg.logger.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.cfg.logger.Warn("watch error", "error", err)
		case <-timer.C:
			rep, err := e.Run(ctx, opts, sink)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.cfg.logger.Error("re-export failed", "error", err)
				continue
			}
			e.cfg.logger.Info("re-exported", "failures", len(rep.Failures))
		}
	}
}

func selected(opts Options) []Kind {
	if len(opts.Only) > 0 {
		return opts.Only
	}
	return Kinds
}

// addTree watches dir and every directory below it. fsnotify watches are
// not recursive.
func addTree(w *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}
