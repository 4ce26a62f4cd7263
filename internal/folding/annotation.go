package folding

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Annotation is a fold region as the UI paints it.
type Annotation struct {
	Handle    Handle   `json:"handle"`
	Interval  Interval `json:"interval"`
	Collapsed bool     `json:"collapsed"`
}

// AnnotationModel is an in-memory RegionSink standing in for an editor's
// annotation model. It is thread-safe.
type AnnotationModel struct {
	mu          sync.RWMutex
	annotations map[Handle]*Annotation
	closed      bool
	applied     int
	onRedraw    func(Batch)
}

// AnnotationOption configures an AnnotationModel.
type AnnotationOption func(*AnnotationModel)

// WithRedraw registers a hook run after each applied batch, outside the lock.
func WithRedraw(fn func(Batch)) AnnotationOption {
	return func(m *AnnotationModel) {
		m.onRedraw = fn
	}
}

// NewAnnotationModel creates an empty annotation model.
func NewAnnotationModel(opts ...AnnotationOption) *AnnotationModel {
	m := &AnnotationModel{annotations: make(map[Handle]*Annotation)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply validates and applies the batch as one unit: removals, then
// insertions, then updates. Nothing changes if any operation is invalid.
// Readers never observe a half-applied batch.
func (m *AnnotationModel) Apply(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrSinkUnavailable
	}
	if err := m.validate(batch); err != nil {
		m.mu.Unlock()
		return err
	}

	for _, h := range batch.Removals {
		delete(m.annotations, h)
	}
	for _, ins := range batch.Insertions {
		m.annotations[ins.Handle] = &Annotation{Handle: ins.Handle, Interval: ins.Interval, Collapsed: ins.Collapsed}
	}
	for _, u := range batch.Updates {
		m.annotations[u.Handle].Interval = u.Interval
	}
	m.applied++
	redraw := m.onRedraw
	m.mu.Unlock()

	if redraw != nil {
		redraw(batch)
	}
	return nil
}

func (m *AnnotationModel) validate(batch Batch) error {
	gone := make(map[Handle]struct{}, len(batch.Removals))
	for _, h := range batch.Removals {
		if _, ok := m.annotations[h]; !ok {
			return fmt.Errorf("remove %d: %w", h, ErrUnknownAnnotation)
		}
		if _, dup := gone[h]; dup {
			return fmt.Errorf("remove %d twice: %w", h, ErrUnknownAnnotation)
		}
		gone[h] = struct{}{}
	}

	added := make(map[Handle]struct{}, len(batch.Insertions))
	for _, ins := range batch.Insertions {
		_, exists := m.annotations[ins.Handle]
		_, removed := gone[ins.Handle]
		_, dup := added[ins.Handle]
		if (exists && !removed) || dup {
			return fmt.Errorf("insert %d: %w", ins.Handle, ErrDuplicateAnnotation)
		}
		if !ins.Interval.Valid() {
			return fmt.Errorf("insert %d: %w", ins.Handle, ErrInvalidInterval)
		}
		added[ins.Handle] = struct{}{}
	}

	for _, u := range batch.Updates {
		_, exists := m.annotations[u.Handle]
		_, removed := gone[u.Handle]
		if !exists || removed {
			return fmt.Errorf("update %d: %w", u.Handle, ErrUnknownAnnotation)
		}
		if !u.Interval.Valid() {
			return fmt.Errorf("update %d: %w", u.Handle, ErrInvalidInterval)
		}
	}
	return nil
}

// SetCollapsed changes the painted state of one annotation.
func (m *AnnotationModel) SetCollapsed(handle Handle, collapsed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkUnavailable
	}
	a, ok := m.annotations[handle]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAnnotation, handle)
	}
	a.Collapsed = collapsed
	return nil
}

// Get returns a copy of one annotation.
func (m *AnnotationModel) Get(handle Handle) (Annotation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.annotations[handle]
	if !ok {
		return Annotation{}, false
	}
	return *a, true
}

// Snapshot returns copies of all annotations ordered by offset, then handle.
func (m *AnnotationModel) Snapshot() []Annotation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Annotation, 0, len(m.annotations))
	for _, a := range m.annotations {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Interval.Offset != out[j].Interval.Offset {
			return out[i].Interval.Offset < out[j].Interval.Offset
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

// Len returns the number of annotations.
func (m *AnnotationModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.annotations)
}

// Applied returns the number of batches applied so far.
func (m *AnnotationModel) Applied() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}

// Close tears the model down. Later batches fail with ErrSinkUnavailable.
func (m *AnnotationModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.annotations = make(map[Handle]*Annotation)
}
