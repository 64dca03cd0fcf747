package node

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// parameter files are often written in several steps; reload once they settle.
const reloadDebounce = 100 * time.Millisecond

// WatchParameterFile loads path and reloads it whenever it changes on disk until Close is called.
// Reload failures are logged and the previous parameters are kept.
func (n *Node) WatchParameterFile(path string) error {
	if err := n.LoadParameterFile(path); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create parameter file watcher")
	}
	// editors replace files rather than write them, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return multierr.Combine(errors.Wrapf(err, "failed to watch %q", path), watcher.Close())
	}
	target := filepath.Clean(path)
	debounced := debounce.New(reloadDebounce)
	reload := func() {
		if n.workers.Stopped() {
			return
		}
		if err := n.LoadParameterFile(path); err != nil {
			n.logger.Warnw("failed to reload parameter file", "path", path, "error", err)
		}
	}

	n.workers.Add(func(ctx context.Context) {
		defer func() {
			if err := watcher.Close(); err != nil {
				n.logger.Debugw("error closing parameter file watcher", "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				debounced(reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				n.logger.Warnw("parameter file watcher error", "path", path, "error", err)
			}
		}
	})
	return nil
}
