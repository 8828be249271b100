// Package watcher submits log files dropped into a directory for analysis.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/analysis"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// Submitter starts the analysis of one file.
type Submitter interface {
	Submit(ctx context.Context, sessionID, fileName, content string) (*models.LogAnalysis, error)
}

// Config controls a Watcher.
type Config struct {
	Dir     string
	Session string
	// Debounce is how long a file must go without writes before it is read.
	Debounce time.Duration
	// Retry is how long to wait before resubmitting when the session is busy.
	Retry time.Duration
	// Tick is how often pending files are checked.
	Tick time.Duration
	// OnSubmit, when set, is called with each submitted record.
	OnSubmit func(*models.LogAnalysis)
}

// DefaultConfig returns the default timings for dir.
func DefaultConfig(dir, session string) Config {
	return Config{
		Dir:      dir,
		Session:  session,
		Debounce: 2 * time.Second,
		Retry:    5 * time.Second,
		Tick:     500 * time.Millisecond,
	}
}

type pendingFile struct {
	path    string
	readyAt time.Time
}

// Watcher tracks a single directory. Files present when it starts are never
// analysed, and each file name is submitted at most once.
type Watcher struct {
	cfg    Config
	submit Submitter
	fs     *fsnotify.Watcher
	now    func() time.Time

	mu        sync.Mutex
	processed map[string]bool
	pending   map[string]pendingFile
}

// New starts watching cfg.Dir and records the files already in it.
func New(cfg Config, submit Submitter) (*Watcher, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}
	cfg.Dir = dir

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read watch dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		cfg:       cfg,
		submit:    submit,
		fs:        fsw,
		now:       time.Now,
		processed: make(map[string]bool),
		pending:   make(map[string]pendingFile),
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.processed[e.Name()] = true
		}
	}
	slog.Info("tactical watcher started", "dir", dir, "existing_files", len(w.processed))
	return w, nil
}

// Run handles file events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	tick := time.NewTicker(w.cfg.Tick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("tactical watcher stopped", "dir", w.cfg.Dir)
			return nil
		case evt, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(evt)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Error("file watcher error", "dir", w.cfg.Dir, "error", err)
		case <-tick.C:
			w.flush(ctx)
		}
	}
}

// Processed reports whether name has been handled or was present at start.
func (w *Watcher) Processed(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed[name]
}

func (w *Watcher) handleEvent(evt fsnotify.Event) {
	if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
		return
	}
	name := filepath.Base(evt.Name)
	if !analysis.AllowedExtension(name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.processed[name] {
		return
	}
	w.pending[name] = pendingFile{path: evt.Name, readyAt: w.now().Add(w.cfg.Debounce)}
}

// flush submits every pending file whose writes have settled.
func (w *Watcher) flush(ctx context.Context) {
	now := w.now()

	w.mu.Lock()
	var ready []string
	for name, p := range w.pending {
		if !now.Before(p.readyAt) {
			ready = append(ready, name)
		}
	}
	w.mu.Unlock()

	for _, name := range ready {
		w.process(ctx, name)
	}
}

func (w *Watcher) process(ctx context.Context, name string) {
	w.mu.Lock()
	p, ok := w.pending[name]
	w.mu.Unlock()
	if !ok {
		return
	}

	rec, err := w.submitFile(ctx, name, p.path)
	if errors.Is(err, ai.ErrAnalysisInProgress) {
		slog.Debug("analysis busy, retrying later", "file", name)
		w.mu.Lock()
		p.readyAt = w.now().Add(w.cfg.Retry)
		w.pending[name] = p
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	delete(w.pending, name)
	w.processed[name] = true
	w.mu.Unlock()

	if err != nil {
		slog.Warn("tactical watcher skipped file", "file", name, "error", err)
		return
	}
	slog.Info("tactical watcher submitted file", "file", name, "analysis_id", rec.ID)
	if w.cfg.OnSubmit != nil {
		w.cfg.OnSubmit(rec)
	}
}

func (w *Watcher) submitFile(ctx context.Context, name, path string) (*models.LogAnalysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if err := analysis.Validate(name, "", info.Size()); err != nil {
		return nil, err
	}
	content, err := analysis.ReadLimited(f)
	if err != nil {
		return nil, err
	}
	return w.submit.Submit(ctx, w.cfg.Session, name, content)
}
