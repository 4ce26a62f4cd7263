package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/folding"
	"github.com/fyrsmithlabs/foldd/internal/logging"
	"github.com/fyrsmithlabs/foldd/internal/syntax"
)

// Summary describes an open document.
type Summary struct {
	ID             string `json:"id"`
	Path           string `json:"path,omitempty"`
	Language       string `json:"language"`
	Revision       int    `json:"revision"`
	Folds          int    `json:"folds"`
	FoldingEnabled bool   `json:"folding_enabled"`
}

// Summarize returns the document's summary.
func (d *Document) Summarize() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Summary{
		ID:             d.id,
		Path:           d.path,
		Language:       d.lang.Name,
		Revision:       d.revision,
		Folds:          len(d.reconciler.Regions()),
		FoldingEnabled: d.reconciler.Enabled(),
	}
}

// Workspace is a registry of open documents keyed by generated IDs.
type Workspace struct {
	mu   sync.RWMutex
	docs map[string]*Document

	folding        *folding.Config
	logger         *logging.Logger
	metrics        *Metrics
	foldingMetrics *folding.Metrics
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithLogger sets the workspace logger.
func WithLogger(l *logging.Logger) WorkspaceOption {
	return func(w *Workspace) {
		w.logger = l
	}
}

// WithMetrics sets the Prometheus metrics shared by all documents.
func WithMetrics(m *Metrics) WorkspaceOption {
	return func(w *Workspace) {
		w.metrics = m
	}
}

// WithFoldingMetrics sets the OpenTelemetry folding metrics shared by all documents.
func WithFoldingMetrics(m *folding.Metrics) WorkspaceOption {
	return func(w *Workspace) {
		w.foldingMetrics = m
	}
}

// NewWorkspace creates an empty workspace. Every document gets cfg as its
// folding preferences.
func NewWorkspace(cfg *folding.Config, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		docs:    make(map[string]*Document),
		folding: cfg,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open opens a document in language (a registered name such as "go"). If
// language is empty it is inferred from path.
func (w *Workspace) Open(ctx context.Context, path, language string, text []byte) (*Document, error) {
	lang, err := resolveLanguage(path, language)
	if err != nil {
		return nil, err
	}

	doc, err := Open(ctx, text, Options{
		ID:             uuid.NewString(),
		Path:           path,
		Language:       lang,
		Folding:        w.folding,
		Logger:         w.logger,
		Metrics:        w.metrics,
		FoldingMetrics: w.foldingMetrics,
	})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.docs[doc.ID()] = doc
	w.mu.Unlock()
	return doc, nil
}

func resolveLanguage(path, language string) (*syntax.Language, error) {
	switch {
	case language != "":
		return syntax.Lookup(language)
	case path != "":
		return syntax.ForPath(path)
	default:
		return nil, ErrNoLanguage
	}
}

// Get returns an open document.
func (w *Workspace) Get(id string) (*Document, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	doc, ok := w.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// List returns summaries of all open documents ordered by path, then ID.
func (w *Workspace) List() []Summary {
	w.mu.RLock()
	docs := make([]*Document, 0, len(w.docs))
	for _, d := range w.docs {
		docs = append(docs, d)
	}
	w.mu.RUnlock()

	out := make([]Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summarize())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of open documents.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.docs)
}

// Close closes and forgets a document.
func (w *Workspace) Close(ctx context.Context, id string) error {
	w.mu.Lock()
	doc, ok := w.docs[id]
	delete(w.docs, id)
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc.Close(ctx)
}

// CloseAll closes every document.
func (w *Workspace) CloseAll(ctx context.Context) error {
	w.mu.Lock()
	docs := w.docs
	w.docs = make(map[string]*Document)
	w.mu.Unlock()

	var errs []error
	for id, doc := range docs {
		if err := doc.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		w.logger.Warn(ctx, "documents failed to close", zap.Int("count", len(errs)))
	}
	return errors.Join(errs...)
}
