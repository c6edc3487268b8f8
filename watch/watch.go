// Package watch keeps the script files of an engine in sync with a directory.
// The files are defined on load, and redefined each time they change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/exception"
)

// Patterns the default script file patterns
var Patterns = []string{"*.js", "*.ts", "*.json"}

// Ignore the directories never watched
var Ignore = []string{"node_modules", ".git", "dist"}

// Definer the target of the script files, *node.Engine implements it
type Definer interface {
	DefineScriptFile(name string, code string) error
}

// Handler called after a watched file event
type Handler func(event string, name string, err error)

// Watcher the script directory watcher
type Watcher struct {
	root     string
	target   Definer
	patterns []string
	skip     string
	watched  sync.Map
}

// New create a watcher of the root directory
func New(root string, target Definer, patterns ...string) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, exception.Wrap(exception.InvalidArgument, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, exception.Wrap(exception.InvalidArgument, err)
	}

	if !info.IsDir() {
		return nil, exception.New(exception.InvalidArgument, "%s is not a directory", root)
	}

	if len(patterns) == 0 {
		patterns = Patterns
	}

	return &Watcher{root: root, target: target, patterns: patterns}, nil
}

// Skip a file name never defined, usually the main script file name
func (w *Watcher) Skip(name string) *Watcher {
	w.skip = name
	return w
}

// Root the absolute path of the watched directory
func (w *Watcher) Root() string {
	return w.root
}

// Load define all the script files of the directory, returns the number of
// defined files
func (w *Watcher) Load() (int, error) {
	return w.load(w.root)
}

// Watching check if the directory (relative to the root) is watched
func (w *Watcher) Watching(dir string) bool {
	_, has := w.watched.Load(filepath.Join(w.root, dir))
	return has
}

// Watch watch the directory until the context is done
func (w *Watcher) Watch(ctx context.Context, handler Handler) error {
	if handler == nil {
		handler = func(string, string, error) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}
	defer watcher.Close()

	if err := w.addAll(watcher, w.root); err != nil {
		return exception.Wrap(exception.EngineInternal, err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("[Watch] Exit %s", w.root)
			fmt.Println(color.YellowString("[Watch] Exit %s", w.root))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return exception.New(exception.EngineInternal, "the watcher events channel is closed")
			}
			w.handle(watcher, event, handler)

		case err, ok := <-watcher.Errors:
			if !ok {
				return exception.New(exception.EngineInternal, "the watcher errors channel is closed")
			}
			log.Error("[Watch] Error: %s", err.Error())
		}
	}
}

func (w *Watcher) handle(watcher *fsnotify.Watcher, event fsnotify.Event, handler Handler) {
	name := w.rel(event.Name)

	// directories
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.ignored(info.Name()) {
				return
			}
			if err := w.addAll(watcher, event.Name); err != nil {
				log.Error("[Watch] %s", err.Error())
				return
			}
			// files written before the watch was added
			if _, err := w.load(event.Name); err != nil {
				log.Error("[Watch] %s", err.Error())
			}
			return
		}
	}

	if _, has := w.watched.Load(event.Name); has && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		log.Info("[Watch] Unwatching: %s", name)
		watcher.Remove(event.Name)
		w.watched.Delete(event.Name)
		return
	}

	if !w.match(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		log.Info("[Watch] %s %s", event.Op.String(), name)
		handler(event.Op.String(), name, w.define(event.Name))

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// the engine keeps the last definition
		log.Info("[Watch] %s %s (kept)", event.Op.String(), name)
		handler(event.Op.String(), name, nil)
	}
}

func (w *Watcher) add(watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Info("[Watch] Watching: %s", dir)
	w.watched.Store(dir, true)
	return nil
}

// addAll watch the directory and its sub directories
func (w *Watcher) addAll(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && w.ignored(entry.Name()) {
			return filepath.SkipDir
		}
		return w.add(watcher, path)
	})
}

func (w *Watcher) load(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != dir && w.ignored(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.match(path) {
			return nil
		}

		if err := w.define(path); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (w *Watcher) define(file string) error {
	name := w.rel(file)
	if name == w.skip {
		log.Warn("[Watch] %s is skipped", name)
		return nil
	}

	code, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return w.target.DefineScriptFile(name, string(code))
}

func (w *Watcher) match(file string) bool {
	base := filepath.Base(file)
	for _, pattern := range w.patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(dir string) bool {
	for _, name := range Ignore {
		if dir == name {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(file string) string {
	name, err := filepath.Rel(w.root, file)
	if err != nil {
		return filepath.ToSlash(strings.TrimPrefix(file, w.root))
	}
	return filepath.ToSlash(name)
}
