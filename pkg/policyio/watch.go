package policyio

import (
	"context"

	"github.com/convergefm/converge/internal/obslog"
	"github.com/convergefm/converge/pkg/ast"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a policy directory whenever a source file changes,
// invoking onReload with a freshly loaded ast.Policy. No agent CLI
// constructs a Watcher; none of them has a --watch flag.
type Watcher struct {
	loader *CUELoader
	fsw    *fsnotify.Watcher
	log    *obslog.Logger
}

// NewWatcher opens an fsnotify watch on dir.
func NewWatcher(dir string, log *obslog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{loader: NewCUELoader(), fsw: fsw, log: log}, nil
}

// Run blocks, reloading dir and invoking onReload on every write/create/
// rename event until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, dir string, onReload func(*ast.Policy, error)) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			policy, err := w.loader.Load(dir)
			onReload(policy, err)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if w.log != nil {
				w.log.Warn().Err(err).Msg("policy watch error")
			}
		}
	}
}
