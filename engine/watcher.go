package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/xiaoyuanzhu-com/sessiond/log"
)

// EventKind classifies a watch event.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
)

// String returns the string representation of an EventKind
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// WatchEvent is one raw filesystem event.
type WatchEvent struct {
	Path string
	Kind EventKind
}

// WatchService abstracts the OS watch primitive so tests can substitute a
// fake event source.
type WatchService interface {
	Register(dir string) error
	Events() <-chan WatchEvent
	Errors() <-chan error
	Close() error
}

// FileHandler receives transcript file events from the watcher's drain loop.
type FileHandler interface {
	OnCreated(path string)
	OnModified(path string)
	OnDeleted(path string)
}

// =============================================================================
// fsnotify-backed WatchService
// =============================================================================

type fsnotifyService struct {
	watcher *fsnotify.Watcher
	events  chan WatchEvent
	errors  chan error
	wg      sync.WaitGroup
}

// NewFSNotifyService creates the production WatchService on top of fsnotify.
func NewFSNotifyService() (WatchService, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &fsnotifyService{
		watcher: w,
		events:  make(chan WatchEvent, 64),
		errors:  make(chan error, 1),
	}

	s.wg.Add(1)
	go s.translate()

	return s, nil
}

// translate maps fsnotify ops onto the engine's event kinds.
func (s *fsnotifyService) translate() {
	defer s.wg.Done()
	defer close(s.events)
	defer close(s.errors)

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op&fsnotify.Create != 0:
				s.events <- WatchEvent{Path: event.Name, Kind: EventCreated}
			case event.Op&fsnotify.Write != 0:
				s.events <- WatchEvent{Path: event.Name, Kind: EventModified}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename away means "file gone from this path".
				s.events <- WatchEvent{Path: event.Name, Kind: EventDeleted}
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			default:
			}
		}
	}
}

func (s *fsnotifyService) Register(dir string) error { return s.watcher.Add(dir) }
func (s *fsnotifyService) Events() <-chan WatchEvent { return s.events }
func (s *fsnotifyService) Errors() <-chan error      { return s.errors }

func (s *fsnotifyService) Close() error {
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

// =============================================================================
// Watcher
// =============================================================================

// Watcher monitors the transcript root and all project subdirectories,
// registering new subdirectories as they appear and routing transcript
// events to the handler. One dedicated goroutine drains events serially, so
// events for a single file are processed in arrival order.
type Watcher struct {
	svc     WatchService
	rootDir string
	handler FileHandler

	wg sync.WaitGroup
}

// NewWatcher creates a watcher over rootDir feeding handler.
func NewWatcher(svc WatchService, rootDir string, handler FileHandler) *Watcher {
	return &Watcher{
		svc:     svc,
		rootDir: rootDir,
		handler: handler,
	}
}

// Start registers the root and every existing project subdirectory, then
// launches the drain loop.
func (w *Watcher) Start() error {
	if err := w.svc.Register(w.rootDir); err != nil {
		return err
	}

	watched := 0
	entries, err := os.ReadDir(w.rootDir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			projectDir := filepath.Join(w.rootDir, entry.Name())
			if err := w.svc.Register(projectDir); err != nil {
				// One unwatchable directory does not stop the rest.
				log.Warn().Err(err).Str("dir", projectDir).Msg("failed to watch project directory")
				continue
			}
			watched++
		}
	}

	w.wg.Add(1)
	go w.drainLoop()

	log.Info().Str("root", w.rootDir).Int("watchedDirs", watched+1).Msg("transcript watcher started")
	return nil
}

// Wait blocks until the drain loop exits (after Close).
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// Close stops the watch service; the drain loop exits when the event channel
// closes.
func (w *Watcher) Close() error {
	return w.svc.Close()
}

// drainLoop is the single event-drain goroutine. Per-event errors never
// terminate it; only the watch service closing does.
func (w *Watcher) drainLoop() {
	defer w.wg.Done()

	events := w.svc.Events()
	errors := w.svc.Errors()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				log.Info().Msg("watch service closed, transcript watcher stopping")
				return
			}
			w.dispatch(event)

		case err, ok := <-errors:
			if !ok {
				errors = nil
				continue
			}
			log.Error().Err(err).Msg("watch service error")
		}
	}
}

// dispatch routes one raw event.
func (w *Watcher) dispatch(event WatchEvent) {
	if event.Kind == EventCreated {
		if info, err := os.Stat(event.Path); err == nil && info.IsDir() {
			if filepath.Dir(event.Path) == w.rootDir {
				w.registerProjectDir(event.Path)
			}
			return
		}
	}

	if _, ok := sessionIDFromPath(event.Path); !ok {
		return
	}

	switch event.Kind {
	case EventCreated:
		w.handler.OnCreated(event.Path)
	case EventModified:
		w.handler.OnModified(event.Path)
	case EventDeleted:
		w.handler.OnDeleted(event.Path)
	}
}

// registerProjectDir watches a newly created project directory and feeds any
// transcripts written before the watch existed through the creation handler.
func (w *Watcher) registerProjectDir(dir string) {
	if err := w.svc.Register(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to watch new project directory")
		return
	}
	log.Debug().Str("dir", dir).Msg("watching new project directory")

	files, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), transcriptExt) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		if _, ok := sessionIDFromPath(path); !ok {
			continue
		}
		w.handler.OnCreated(path)
	}
}
