// Package watch reports changes to C# project files to the OmniSharp server.
package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/fhs/omnisharp-client/internal/omnisharp/server"
	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDelay is how long the watcher waits for changes to settle.
	DefaultDelay = 200 * time.Millisecond

	// DefaultRetryDelay is how long changes the server was not ready for
	// are held before they are sent again.
	DefaultRetryDelay = 2 * time.Second
)

var skipDirs = map[string]bool{
	".git":         true,
	"bin":          true,
	"obj":          true,
	"node_modules": true,
}

var watchedExts = map[string]bool{
	".cs":      true,
	".csx":     true,
	".cake":    true,
	".csproj":  true,
	".sln":     true,
	".props":   true,
	".targets": true,
}

// Requester sends requests to the OmniSharp server. *server.Server
// implements it.
type Requester interface {
	MakeRequest(ctx context.Context, command string, data interface{}) (json.RawMessage, error)
}

// Watcher batches file system changes under a directory tree into
// /filesChanged requests.
type Watcher struct {
	Delay      time.Duration
	RetryDelay time.Duration

	req   Requester
	fsw   *fsnotify.Watcher
	retry chan []protocol.FileChange
	done  chan struct{} // closed when Run returns
}

// New watches every directory under root.
func New(root string, req Requester) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	w := &Watcher{
		Delay:      DefaultDelay,
		RetryDelay: DefaultRetryDelay,
		req:        req,
		fsw:        fsw,
		retry:      make(chan []protocol.FileChange),
		done:       make(chan struct{}),
	}
	if err := w.addTree(root, nil); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches root and the directories under it. Interesting files
// found on the way are passed to found, if it is not nil.
func (w *Watcher) addTree(root string, found func(path string)) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				if found != nil && Interesting(path) {
					found(path)
				}
				return nil
			}
			if path != root && skipDirs[de.Name()] {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return errors.Wrapf(err, "failed to watch %v", path)
			}
			return nil
		},
		Unsorted: true,
	})
}

// Interesting reports whether a change to the named file concerns the
// server.
func Interesting(name string) bool {
	base := filepath.Base(name)
	if base == "project.json" {
		return true
	}
	return watchedExts[strings.ToLower(filepath.Ext(base))]
}

func changeType(op fsnotify.Op) (protocol.FileChangeType, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return protocol.FileDeleted, true
	case op.Has(fsnotify.Create):
		return protocol.FileCreated, true
	case op.Has(fsnotify.Write):
		return protocol.FileChanged, true
	}
	return "", false
}

// Run sends changes to the server until ctx is done. The watcher is closed
// on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.fsw.Close()

	pending := make(map[string]protocol.FileChangeType)
	timer := time.NewTimer(w.Delay)
	timer.Stop()

	created := func(path string) {
		pending[path] = protocol.FileCreated
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !skipDirs[fi.Name()] {
					// Files may be in place before the directory is watched.
					if err := w.addTree(ev.Name, created); err != nil {
						logrus.Warnf("watch: %v", err)
					}
					if len(pending) > 0 {
						timer.Reset(w.Delay)
					}
					continue
				}
			}
			if !Interesting(ev.Name) {
				continue
			}
			ct, ok := changeType(ev.Op)
			if !ok {
				continue
			}
			if prev, seen := pending[ev.Name]; seen && prev == protocol.FileCreated && ct == protocol.FileChanged {
				ct = protocol.FileCreated
			}
			pending[ev.Name] = ct
			timer.Reset(w.Delay)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logrus.Warnf("watch: %v", err)

		case changes := <-w.retry:
			wasEmpty := len(pending) == 0
			for _, c := range changes {
				// A newer change wins, but a file still counts as
				// created if it was written to since.
				if prev, newer := pending[c.FileName]; newer && !(prev == protocol.FileChanged && c.ChangeType == protocol.FileCreated) {
					continue
				}
				pending[c.FileName] = c.ChangeType
			}
			if wasEmpty {
				timer.Reset(w.RetryDelay)
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changes := make([]protocol.FileChange, 0, len(pending))
			for name, ct := range pending {
				changes = append(changes, protocol.FileChange{FileName: name, ChangeType: ct})
			}
			sort.Slice(changes, func(i, j int) bool {
				return changes[i].FileName < changes[j].FileName
			})
			pending = make(map[string]protocol.FileChangeType)
			go w.send(ctx, changes)
		}
	}
}

// send sends changes to the server. Changes the server is not started for
// are handed back to Run.
func (w *Watcher) send(ctx context.Context, changes []protocol.FileChange) {
	logrus.Debugf("watch: %v files changed", len(changes))
	_, err := w.req.MakeRequest(ctx, protocol.FilesChanged, changes)
	if err == nil {
		return
	}
	if errors.Cause(err) != server.ErrNotStarted {
		logrus.Warnf("watch: %v request failed: %v", protocol.FilesChanged, err)
		return
	}
	logrus.Debugf("watch: server not started; holding %v changes", len(changes))
	select {
	case w.retry <- changes:
	case <-w.done:
	}
}
