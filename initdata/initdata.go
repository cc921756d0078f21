// Package initdata implements the init-data server. On startup it scans a
// data directory once and builds a read-only dataset-name -> file-path
// index; it never reads or parses the files themselves -- dataset payload
// parsing is left entirely to clients.
package initdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// Server serves dataset-name -> path lookups over the data directory's
// file stems.
type Server struct {
	dir string

	mu    sync.RWMutex
	index map[string]string

	watcher *fsnotify.Watcher // nil unless WatchForChanges was used
}

// New scans dir once, failing fast if the directory can't be read.
func New(dir string) (*Server, error) {
	s := &Server{dir: dir}
	if err := s.rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("initdata: scan %s: %w", s.dir, err)
	}
	idx := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		idx[stem] = filepath.Join(s.dir, name)
	}
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	nlog.Infof("initdata: indexed %d dataset(s) under %s", len(idx), s.dir)
	return nil
}

// WatchForChanges starts an fsnotify watch on dir and rescans on any
// create/remove/rename event, for long-running supervisor sessions across
// multiple scenario runs. Off by default -- the default path builds the
// index once at startup and never again.
func (s *Server) WatchForChanges() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("initdata: watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("initdata: watch %s: %w", s.dir, err)
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := s.rescan(); err != nil {
						nlog.Warningf("initdata: rescan after %s: %v", ev, err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				nlog.Warningf("initdata: watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Lookup resolves a dataset name to its file path, or ok=false if unknown.
func (s *Server) Lookup(key string) (path string, ok bool) {
	s.mu.RLock()
	path, ok = s.index[key]
	s.mu.RUnlock()
	return
}

// HandleGet implements the GET{key} handler. Mask is accepted but ignored
// with a warning: this server indexes by name only.
func (s *Server) HandleGet(req wire.GetBody) (wire.Message, error) {
	if req.Mask != nil {
		nlog.Warningf("initdata: GET %q: mask is ignored by this service", req.Key)
	}
	path, ok := s.Lookup(req.Key)
	if !ok {
		return wire.NewJSON(wire.TagPath, wire.PathBody{Path: nil})
	}
	return wire.NewJSON(wire.TagPath, wire.PathBody{Path: &path})
}
