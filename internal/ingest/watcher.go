package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures Watch.
type WatchConfig struct {
	Root string
	// Debounce coalesces the create and write bursts of a file being copied in.
	Debounce time.Duration
}

// Watch emits paths of accepted files created or rewritten under Root
// (recursively) until ctx is cancelled. Both channels close on return.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		return nil, nil, errors.New("watch root is empty")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	paths := make(chan string, 64)
	errs := make(chan error, 1)

	go func() {
		ready := make(chan string)
		quit := make(chan struct{})
		pending := map[string]*time.Timer{}

		defer close(errs)
		defer close(paths)
		defer func() { _ = w.Close() }()
		defer func() {
			close(quit)
			for _, t := range pending {
				t.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case p := <-ready:
				delete(pending, p)
				select {
				case paths <- p:
				case <-ctx.Done():
					return
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							slog.Warn("ingest.watch.add_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !Allowed(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				if cfg.Debounce <= 0 {
					select {
					case paths <- e.Name:
					case <-ctx.Done():
						return
					}
					continue
				}
				if t, ok := pending[e.Name]; ok {
					t.Reset(cfg.Debounce)
					continue
				}
				name := e.Name
				pending[name] = time.AfterFunc(cfg.Debounce, func() {
					select {
					case ready <- name:
					case <-quit:
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("ingest.watch.error", "error", err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return paths, errs, nil
}
