package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDebounce is how long the reloader waits after the last change.
const ReloadDebounce = 500 * time.Millisecond

// Reloader watches the settings file and pushes changes into the scheduler.
// It watches the file's directory, so editors that save by renaming a temp
// file over the original are picked up too.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	paths   []string
	files   map[string]bool
}

// NewReloader creates a watcher for the given settings paths. Empty and
// missing paths are skipped.
func NewReloader(server *Server, paths []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Reloader{
		watcher: watcher,
		server:  server,
		files:   make(map[string]bool),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		clean := filepath.Clean(p)
		if dir := filepath.Dir(clean); !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
			}
			dirs[dir] = true
		}
		r.files[clean] = true
		r.paths = append(r.paths, p)
	}
	return r, nil
}

// Paths returns the settings files being watched.
func (r *Reloader) Paths() []string {
	return r.paths
}

func (r *Reloader) relevant(event fsnotify.Event) bool {
	if !r.files[filepath.Clean(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// Run reloads settings after changes settle. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()
	log := r.server.log

	debounce := time.NewTimer(ReloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if r.relevant(event) {
				debounce.Reset(ReloadDebounce)
			}

		case <-debounce.C:
			before := r.server.SettingsHash()
			if err := r.server.ReloadSettings(ctx); err != nil {
				log.Error().Err(err).Msg("hot-reload failed")
				continue
			}
			if after := r.server.SettingsHash(); after != before {
				log.Info().Str("hash", after).Msg("hot-reload: settings reloaded")
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}
