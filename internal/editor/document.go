// Package editor holds open documents: their text, outline and fold regions.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/folding"
	"github.com/fyrsmithlabs/foldd/internal/logging"
	"github.com/fyrsmithlabs/foldd/internal/structure"
	"github.com/fyrsmithlabs/foldd/internal/syntax"
	"github.com/fyrsmithlabs/foldd/internal/textbuf"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentClosed   = errors.New("document closed")
	ErrNoLanguage       = errors.New("document language not set")
)

// Options configure a Document.
type Options struct {
	ID       string
	Path     string
	Language *syntax.Language
	Folding  *folding.Config

	Logger         *logging.Logger
	Metrics        *Metrics
	FoldingMetrics *folding.Metrics
	// Redraw runs after every batch the annotation model accepts.
	Redraw func(folding.Batch)
}

// Change is the result of one edit.
type Change struct {
	Revision int           `json:"revision"`
	Batch    folding.Batch `json:"batch"`
	Parse    syntax.Stats  `json:"parse"`
	// Dropped is set when the annotation model rejected the batch. The folds
	// catch up on the next edit.
	Dropped bool `json:"dropped,omitempty"`
}

// Fold is a fold region as presented to clients.
type Fold struct {
	Handle        folding.Handle `json:"handle"`
	Kind          string         `json:"kind"`
	Discriminator string         `json:"discriminator"`
	StartLine     int            `json:"start_line"`
	EndLine       int            `json:"end_line"`
	Offset        int            `json:"offset"`
	Length        int            `json:"length"`
	Collapsed     bool           `json:"collapsed"`
}

// Document is an open text document. It is safe for concurrent use.
type Document struct {
	mu sync.Mutex

	id       string
	path     string
	lang     *syntax.Language
	buf      *textbuf.Buffer
	revision int
	closed   bool

	parser      *syntax.Parser
	reconciler  *folding.Reconciler
	annotations *folding.AnnotationModel

	logger  *logging.Logger
	metrics *Metrics
}

// Open parses text and installs folding on it.
func Open(ctx context.Context, text []byte, opts Options) (*Document, error) {
	if opts.Language == nil {
		return nil, ErrNoLanguage
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Document{
		id:          opts.ID,
		path:        opts.Path,
		lang:        opts.Language,
		buf:         textbuf.New(text),
		logger:      logger.Named("editor"),
		metrics:     opts.Metrics,
		annotations: folding.NewAnnotationModel(folding.WithRedraw(opts.Redraw)),
	}
	d.parser = syntax.NewParser(opts.Language, syntax.WithLogger(logger.Underlying()))

	foldingOpts := []folding.ReconcilerOption{folding.WithLogger(folding.NewLogger(logger.Underlying()))}
	if opts.FoldingMetrics != nil {
		foldingOpts = append(foldingOpts, folding.WithMetrics(opts.FoldingMetrics))
	}
	d.reconciler = folding.NewReconciler(folding.MapperFunc(d.mapLines), opts.Folding, foldingOpts...)

	ctx = d.logContext(ctx)
	tree, err := d.parser.Parse(ctx, text)
	if err != nil {
		d.parser.Close()
		return nil, fmt.Errorf("open %s: %w", d.name(), err)
	}
	batch, err := d.reconciler.Install(ctx, tree, d.annotations)
	if err != nil {
		d.logger.Warn(ctx, "initial folds dropped", zap.Error(err))
	} else {
		d.metrics.recordBatch(batch)
	}

	if d.metrics != nil {
		d.metrics.DocumentsOpen.Inc()
	}
	d.logger.Info(ctx, "document opened",
		zap.String("path", d.path),
		zap.String("language", d.lang.Name),
		zap.Int("bytes", d.buf.Len()),
		zap.Int("folds", len(d.reconciler.Regions())),
	)
	return d, nil
}

// mapLines is the document's IntervalMapper. It reads d.buf, so callers hold d.mu.
func (d *Document) mapLines(startLine, endLineExclusive int) (folding.Interval, error) {
	offset, length, err := d.buf.Span(startLine, endLineExclusive)
	if err != nil {
		return folding.Interval{}, fmt.Errorf("%w: %v", folding.ErrMapping, err)
	}
	return folding.Interval{Offset: offset, Length: length}, nil
}

// SetText replaces the whole document.
func (d *Document) SetText(ctx context.Context, text []byte) (Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Change{}, ErrDocumentClosed
	}
	return d.applyLocked(ctx, textbuf.New(text))
}

// Replace replaces length bytes at offset with text.
func (d *Document) Replace(ctx context.Context, offset, length int, text []byte) (Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Change{}, ErrDocumentClosed
	}
	next, err := d.buf.Replace(offset, length, text)
	if err != nil {
		return Change{}, err
	}
	return d.applyLocked(ctx, next)
}

func (d *Document) applyLocked(ctx context.Context, next *textbuf.Buffer) (Change, error) {
	start := time.Now()
	ctx = logging.WithRevision(d.logContext(ctx), d.revision+1)

	tree, err := d.parser.Parse(ctx, next.Bytes())
	if err != nil {
		if d.metrics != nil {
			d.metrics.ParseFailures.WithLabelValues(d.lang.Name).Inc()
		}
		return Change{}, fmt.Errorf("parse %s: %w", d.name(), err)
	}

	edit := textbuf.Diff(d.buf.Bytes(), next.Bytes())
	erased := folding.Interval{Offset: edit.StartByte, Length: edit.OldEndByte - edit.StartByte}

	d.buf = next
	d.revision++
	change := Change{Revision: d.revision, Parse: d.parser.Stats()}

	batch, err := d.reconciler.ReconcileEdit(ctx, tree, erased)
	if err != nil {
		change.Dropped = true
		if d.metrics != nil {
			d.metrics.SinkFailures.Inc()
		}
		d.logger.Warn(ctx, "fold batch dropped", zap.Error(err))
	} else {
		change.Batch = batch
		d.metrics.recordBatch(batch)
	}

	if d.metrics != nil {
		d.metrics.EditsTotal.WithLabelValues(d.lang.Name).Inc()
		d.metrics.ParseDuration.WithLabelValues(d.lang.Name).Observe(time.Since(start).Seconds())
	}
	d.logger.Debug(ctx, "document changed",
		zap.Int("bytes", d.buf.Len()),
		zap.Int("nodes", change.Parse.Nodes),
		zap.Int("reused", change.Parse.Reused),
		zap.Int("batch_size", batch.Size()),
	)
	return change, nil
}

// Toggle flips the collapsed state of a fold and returns the new state.
func (d *Document) Toggle(handle folding.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, ErrDocumentClosed
	}
	region, ok := d.reconciler.Region(handle)
	if !ok {
		return false, fmt.Errorf("%w: %d", folding.ErrRegionNotFound, handle)
	}
	if err := d.setCollapsedLocked(handle, !region.Collapsed); err != nil {
		return false, err
	}
	return !region.Collapsed, nil
}

// SetCollapsed collapses or expands a fold.
func (d *Document) SetCollapsed(handle folding.Handle, collapsed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDocumentClosed
	}
	return d.setCollapsedLocked(handle, collapsed)
}

func (d *Document) setCollapsedLocked(handle folding.Handle, collapsed bool) error {
	if err := d.reconciler.SetCollapsed(handle, collapsed); err != nil {
		return err
	}
	if err := d.annotations.SetCollapsed(handle, collapsed); err != nil {
		// the model lags behind after a dropped batch; the reconciler is authoritative
		d.logger.Debug(context.Background(), "annotation not updated",
			zap.Uint64("handle", uint64(handle)), zap.Error(err))
	}
	if d.metrics != nil {
		d.metrics.TogglesTotal.Inc()
	}
	return nil
}

// SetFoldingEnabled turns folding on or off for this document.
func (d *Document) SetFoldingEnabled(ctx context.Context, enabled bool) (folding.Batch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return folding.Batch{}, ErrDocumentClosed
	}
	batch, err := d.reconciler.SetEnabled(d.logContext(ctx), enabled)
	if err != nil {
		return folding.Batch{}, err
	}
	d.metrics.recordBatch(batch)
	return batch, nil
}

// FoldingEnabled reports whether folding is on.
func (d *Document) FoldingEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reconciler.Enabled()
}

// Folds returns the visible folds ordered by offset.
func (d *Document) Folds() []Fold {
	d.mu.Lock()
	defer d.mu.Unlock()

	regions := d.reconciler.Regions()
	folds := make([]Fold, 0, len(regions))
	for _, r := range regions {
		end := r.Interval.End() - 1
		if end < r.Interval.Offset {
			end = r.Interval.Offset
		}
		folds = append(folds, Fold{
			Handle:        r.Handle,
			Kind:          r.Kind.String(),
			Discriminator: r.Discriminator.String(),
			StartLine:     d.buf.LineOf(r.Interval.Offset),
			EndLine:       d.buf.LineOf(end),
			Offset:        r.Interval.Offset,
			Length:        r.Interval.Length,
			Collapsed:     r.Collapsed,
		})
	}
	return folds
}

// Annotations returns what the annotation model currently paints.
func (d *Document) Annotations() []folding.Annotation {
	return d.annotations.Snapshot()
}

// Outline returns the current structure tree.
func (d *Document) Outline() *structure.Tree {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parser.Tree()
}

// Text returns a copy of the current text.
func (d *Document) Text() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buf.Bytes()...)
}

// Buffer returns the current buffer. Buffers are immutable.
func (d *Document) Buffer() *textbuf.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf
}

// Revision returns the number of edits applied since Open.
func (d *Document) Revision() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revision
}

// ID returns the document ID.
func (d *Document) ID() string { return d.id }

// Path returns the path the document was opened from, if any.
func (d *Document) Path() string { return d.path }

// Language returns the document language.
func (d *Document) Language() *syntax.Language { return d.lang }

// Close uninstalls folding and releases the parser. Later calls fail with
// ErrDocumentClosed.
func (d *Document) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDocumentClosed
	}
	d.closed = true
	ctx = d.logContext(ctx)
	d.reconciler.Uninstall(ctx)
	d.annotations.Close()
	d.parser.Close()
	if d.metrics != nil {
		d.metrics.DocumentsOpen.Dec()
	}
	d.logger.Info(ctx, "document closed", zap.Int("revision", d.revision))
	return nil
}

func (d *Document) logContext(ctx context.Context) context.Context {
	if d.id == "" {
		return ctx
	}
	return logging.WithDocumentID(ctx, d.id)
}

func (d *Document) name() string {
	if d.path != "" {
		return d.path
	}
	if d.id != "" {
		return d.id
	}
	return "document"
}
