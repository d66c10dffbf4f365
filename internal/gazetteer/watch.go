package gazetteer

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the gazetteer whenever the curated file changes on disk.
// Editors and config-management tools tend to emit bursts of events for one
// save, so reloads are debounced. Blocks until ctx is cancelled; run it in
// its own goroutine.
func (g *Gazetteer) Watch(ctx context.Context) error {
	if g.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: rename-and-replace writers (atomic
	// saves) would otherwise detach the watch on the first update.
	if err := watcher.Add(filepath.Dir(g.path)); err != nil {
		return err
	}
	log.Printf("[Gazetteer] Watching %s for changes", g.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	target := filepath.Clean(g.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				if err := g.Reload(); err != nil {
					log.Printf("[Gazetteer] Reload failed, keeping previous snapshot: %v", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Gazetteer] Watcher error: %v", err)
		}
	}
}
