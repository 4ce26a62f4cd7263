// Package watch reloads a document when its file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/foldd/internal/editor"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Target receives the file's new contents.
type Target interface {
	SetText(ctx context.Context, text []byte) (editor.Change, error)
}

// Reload reports one reload of the watched file.
type Reload struct {
	Path      string
	Change    editor.Change
	Err       error
	Timestamp time.Time
}

// Watcher watches one file and feeds every new version to a Target.
//
// The file's directory is watched rather than the file so that editors that
// save by renaming a temporary file are seen.
type Watcher struct {
	path    string
	target  Target
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
	logger  *zap.Logger

	events chan Reload
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	lastSum uint64
	seeded  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.Named("watch")
		}
	}
}

// WithLimit allows one reload per minInterval with bursts of up to burst.
func WithLimit(minInterval time.Duration, burst int) Option {
	return func(w *Watcher) {
		if burst < 1 {
			burst = 1
		}
		limit := rate.Inf
		if minInterval > 0 {
			limit = rate.Every(minInterval)
		}
		w.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithBuffer sets the capacity of the Events channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n >= 0 {
			w.events = make(chan Reload, n)
		}
	}
}

// New creates a watcher for path. Call Start to begin watching.
func New(path string, target Target, opts ...Option) (*Watcher, error) {
	if target == nil {
		return nil, fmt.Errorf("target cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		path:    abs,
		target:  target,
		watcher: fw,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:  zap.NewNop(),
		events:  make(chan Reload, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Seed records text as the version the target already has, so an event that
// leaves the file unchanged does not trigger a reload.
func (w *Watcher) Seed(text []byte) {
	w.lastSum = xxhash.Sum64(text)
	w.seeded = true
}

// Start begins watching in a background goroutine. Reloads are reported on
// Events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher. Done is closed once the background goroutine exits.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

// Done is closed when the background goroutine exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Events returns the channel of reloads. Reloads are dropped when it is full.
func (w *Watcher) Events() <-chan Reload {
	return w.events
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.events)

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

// handle reloads the file if event concerns it.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			w.logger.Debug("file moved away", zap.String("path", w.path), zap.String("op", event.Op.String()))
		}
		return
	}

	if err := w.waitTurn(ctx); err != nil {
		return
	}

	reload, ok := w.reload(ctx)
	if !ok {
		return
	}
	select {
	case w.events <- reload:
	default:
		w.logger.Debug("reload event dropped", zap.String("path", w.path))
	}
}

// waitTurn blocks until the limiter admits another reload. It gives up when
// ctx is done or the watcher is stopped.
func (w *Watcher) waitTurn(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return w.limiter.Wait(ctx)
}

// reload reads the file and hands it to the target. It reports false when
// the contents did not change.
func (w *Watcher) reload(ctx context.Context) (Reload, bool) {
	r := Reload{Path: w.path, Timestamp: time.Now()}

	text, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, false
		}
		r.Err = fmt.Errorf("reading %s: %w", w.path, err)
		w.logger.Warn("reload failed", zap.Error(r.Err))
		return r, true
	}

	sum := xxhash.Sum64(text)
	if w.seeded && sum == w.lastSum {
		return r, false
	}

	change, err := w.target.SetText(ctx, text)
	if err != nil {
		r.Err = err
		w.logger.Warn("reload failed", zap.String("path", w.path), zap.Error(err))
		return r, true
	}
	w.lastSum = sum
	w.seeded = true
	r.Change = change

	w.logger.Debug("reloaded",
		zap.String("path", w.path),
		zap.Int("revision", change.Revision),
		zap.Int("batch_size", change.Batch.Size()),
	)
	return r, true
}
