package folding

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// Reconciler owns the visible set of fold regions for one editor and keeps it
// in step with successive structure trees.
type Reconciler struct {
	computer *RegionComputer
	config   *Config
	metrics  *Metrics
	logger   *Logger

	sink      RegionSink
	root      Tree
	installed bool
	enabled   bool

	visible    map[Handle]*FoldRegion
	lastHandle Handle
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMetrics sets custom metrics for the reconciler.
func WithMetrics(m *Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithLogger sets a custom logger for the reconciler.
func WithLogger(l *Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// NewReconciler creates a reconciler measuring regions with mapper. A nil
// config means DefaultConfig.
func NewReconciler(mapper IntervalMapper, config *Config, opts ...ReconcilerOption) *Reconciler {
	if config == nil {
		config = DefaultConfig()
	}

	metrics, _ := NewMetrics(nil)
	r := &Reconciler{
		computer: NewRegionComputer(mapper),
		config:   config,
		metrics:  metrics,
		logger:   NewLogger(nil),
		enabled:  config.Enabled,
		visible:  make(map[Handle]*FoldRegion),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install attaches the reconciler to an editor and, if folding is enabled,
// runs Initialize on root. Installing an already installed reconciler swaps the
// tree and sink and starts over.
func (r *Reconciler) Install(ctx context.Context, root Tree, sink RegionSink) (Batch, error) {
	r.sink = sink
	r.root = root
	r.installed = true
	r.logger.Installed(ctx, r.enabled)

	if !r.enabled {
		return Batch{}, nil
	}
	return r.Initialize(ctx, root)
}

// Uninstall detaches the reconciler. The sink is asked, best effort, to drop
// every visible region. Later calls are no-ops until the next Install.
func (r *Reconciler) Uninstall(ctx context.Context) {
	if !r.installed {
		return
	}

	removed := len(r.visible)
	if removed > 0 && r.sink != nil {
		batch := Batch{Removals: r.sortedHandles()}
		if err := r.sink.Apply(ctx, batch); err != nil {
			r.logger.BatchDropped(ctx, "uninstall", batch, err)
		}
	}
	r.metrics.RecordVisible(ctx, -int64(removed))

	r.visible = make(map[Handle]*FoldRegion)
	r.sink = nil
	r.root = nil
	r.installed = false
	r.logger.Uninstalled(ctx, removed)
}

// Initialize replaces the whole visible set with fresh regions for root. No
// identity is preserved; initial collapsed state comes from the config.
func (r *Reconciler) Initialize(ctx context.Context, root Tree) (Batch, error) {
	if !r.installed || !r.enabled {
		return Batch{}, nil
	}

	ctx, span := StartSpan(ctx, "folding.initialize")
	defer span.End()
	start := time.Now()

	r.root = root
	target, stats := r.computer.Compute(root)
	r.recordCompute(ctx, stats)

	batch := Batch{Removals: r.sortedHandles()}
	next := make(map[Handle]*FoldRegion, len(target))
	for _, e := range target {
		region := &FoldRegion{
			Handle:        r.nextHandle(),
			Node:          e.Node,
			Kind:          e.Kind,
			Discriminator: e.Discriminator,
			Interval:      e.Interval,
			Collapsed:     r.config.collapsedOnInit(e),
		}
		next[region.Handle] = region
		batch.Insertions = append(batch.Insertions, Insertion{
			Handle:    region.Handle,
			Interval:  region.Interval,
			Collapsed: region.Collapsed,
		})
	}

	if !batch.IsEmpty() {
		if err := r.apply(ctx, "initialize", batch); err != nil {
			return Batch{}, err
		}
	}

	r.metrics.RecordVisible(ctx, int64(len(next)-len(r.visible)))
	r.visible = next

	duration := time.Since(start)
	r.metrics.RecordBatch(ctx, "initialize", batch, 0, duration)
	r.logger.Initialized(ctx, batch, duration)
	span.SetAttributes(batchAttributes(batch, 0)...)
	return batch, nil
}

// pendingUpdate pairs a visible region with the target entry it will follow.
type pendingUpdate struct {
	region *FoldRegion
	entry  TargetEntry
}

// Reconcile brings the visible set in line with root and returns the batch
// handed to the sink. An empty batch means nothing changed (or the reconciler
// is not installed or disabled). If the sink fails, the visible set is left
// as it was and the error is returned for logging only.
func (r *Reconciler) Reconcile(ctx context.Context, root Tree) (Batch, error) {
	return r.ReconcileEdit(ctx, root, Interval{})
}

// ReconcileEdit is Reconcile after an edit that removed the text at erased,
// measured in the previous buffer. Regions lying wholly inside erased were
// deleted along with their text and are never repaired onto another node.
func (r *Reconciler) ReconcileEdit(ctx context.Context, root Tree, erased Interval) (Batch, error) {
	if !r.installed {
		return Batch{}, nil
	}
	if !r.enabled {
		// Re-enabling initializes from the latest tree.
		r.root = root
		return Batch{}, nil
	}

	ctx, span := StartSpan(ctx, "folding.reconcile")
	defer span.End()
	start := time.Now()

	// Phase A: target set.
	r.root = root
	target, stats := r.computer.Compute(root)
	r.recordCompute(ctx, stats)

	// Phase B: group what is on screen by the node it is bound to.
	current := r.sortedRegions()
	byNode := make(map[structure.NodeID][]*FoldRegion, len(current))
	for _, region := range current {
		byNode[region.Node] = append(byNode[region.Node], region)
	}

	// Phase C: partition.
	var additions []TargetEntry
	var updates []pendingUpdate
	matched := make(map[Handle]struct{}, len(current))
	for _, e := range target {
		var hit *FoldRegion
		for _, candidate := range byNode[e.Node] {
			if _, used := matched[candidate.Handle]; used {
				continue
			}
			if candidate.Discriminator == e.Discriminator {
				hit = candidate
				break
			}
		}
		if hit == nil {
			additions = append(additions, e)
			continue
		}
		matched[hit.Handle] = struct{}{}
		if hit.Interval != e.Interval {
			updates = append(updates, pendingUpdate{region: hit, entry: e})
		}
	}

	var deletions []*FoldRegion
	for _, region := range current {
		if _, ok := matched[region.Handle]; !ok {
			deletions = append(deletions, region)
		}
	}

	// Phase D: rescue deleted regions whose node was reallocated in place.
	var repairs []pendingUpdate
	var displaced []*FoldRegion
	var removals []*FoldRegion
	for _, d := range deletions {
		if erased.Covers(d.Interval) {
			removals = append(removals, d)
			continue
		}
		if i := indexOfAddition(additions, d); i >= 0 {
			repairs = append(repairs, pendingUpdate{region: d, entry: additions[i]})
			additions = append(additions[:i], additions[i+1:]...)
			continue
		}
		if i := indexOfUpdate(updates, d); i >= 0 {
			// d takes over the node; the region that was following it goes.
			repairs = append(repairs, pendingUpdate{region: d, entry: updates[i].entry})
			displaced = append(displaced, updates[i].region)
			updates = append(updates[:i], updates[i+1:]...)
			continue
		}
		removals = append(removals, d)
	}
	removals = append(removals, displaced...)

	// Phase E: assemble, apply, commit.
	var batch Batch
	for _, d := range removals {
		batch.Removals = append(batch.Removals, d.Handle)
	}
	inserted := make([]*FoldRegion, 0, len(additions))
	for _, a := range additions {
		region := &FoldRegion{
			Handle:        r.nextHandle(),
			Node:          a.Node,
			Kind:          a.Kind,
			Discriminator: a.Discriminator,
			Interval:      a.Interval,
		}
		inserted = append(inserted, region)
		batch.Insertions = append(batch.Insertions, Insertion{Handle: region.Handle, Interval: region.Interval})
	}
	for _, u := range updates {
		batch.Updates = append(batch.Updates, Update{Handle: u.region.Handle, Interval: u.entry.Interval})
	}
	for _, rp := range repairs {
		batch.Updates = append(batch.Updates, Update{Handle: rp.region.Handle, Interval: rp.entry.Interval})
	}

	if batch.IsEmpty() {
		r.metrics.RecordBatch(ctx, "reconcile", batch, 0, time.Since(start))
		return batch, nil
	}

	if err := r.apply(ctx, "reconcile", batch); err != nil {
		return Batch{}, err
	}

	for _, d := range removals {
		delete(r.visible, d.Handle)
	}
	for _, region := range inserted {
		r.visible[region.Handle] = region
	}
	for _, u := range updates {
		u.region.Interval = u.entry.Interval
	}
	for _, rp := range repairs {
		rp.region.Node = rp.entry.Node
		rp.region.Kind = rp.entry.Kind
		rp.region.Interval = rp.entry.Interval
	}
	r.metrics.RecordVisible(ctx, int64(len(inserted)-len(removals)))

	if len(repairs) > 0 {
		r.logger.RegionsRepaired(ctx, len(repairs), len(displaced))
	}
	duration := time.Since(start)
	r.metrics.RecordBatch(ctx, "reconcile", batch, len(repairs), duration)
	r.logger.BatchApplied(ctx, "reconcile", batch, len(repairs), len(r.visible), duration)
	span.SetAttributes(batchAttributes(batch, len(repairs))...)
	return batch, nil
}

// SetEnabled toggles the folding preference. Turning folding on runs
// Initialize on the last tree seen; turning it off removes every region.
func (r *Reconciler) SetEnabled(ctx context.Context, enabled bool) (Batch, error) {
	if r.enabled == enabled {
		return Batch{}, nil
	}
	r.enabled = enabled
	if !r.installed {
		return Batch{}, nil
	}
	if enabled {
		return r.Initialize(ctx, r.root)
	}

	batch := Batch{Removals: r.sortedHandles()}
	if !batch.IsEmpty() {
		if err := r.apply(ctx, "disable", batch); err != nil {
			return Batch{}, err
		}
	}
	r.metrics.RecordVisible(ctx, -int64(len(r.visible)))
	r.visible = make(map[Handle]*FoldRegion)
	r.logger.BatchApplied(ctx, "disable", batch, 0, 0, 0)
	return batch, nil
}

// SetCollapsed records the UI's collapsed/expanded choice for a region.
func (r *Reconciler) SetCollapsed(handle Handle, collapsed bool) error {
	if !r.installed {
		return ErrNotInstalled
	}
	region, ok := r.visible[handle]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRegionNotFound, handle)
	}
	region.Collapsed = collapsed
	return nil
}

// Region returns a copy of the region with the given handle.
func (r *Reconciler) Region(handle Handle) (FoldRegion, bool) {
	region, ok := r.visible[handle]
	if !ok {
		return FoldRegion{}, false
	}
	return *region, true
}

// Regions returns copies of all visible regions ordered by offset.
func (r *Reconciler) Regions() []FoldRegion {
	sorted := r.sortedRegions()
	out := make([]FoldRegion, len(sorted))
	for i, region := range sorted {
		out[i] = *region
	}
	return out
}

// Installed reports whether Install has been called without a later Uninstall.
func (r *Reconciler) Installed() bool {
	return r.installed
}

// Enabled reports the folding preference.
func (r *Reconciler) Enabled() bool {
	return r.enabled
}

func (r *Reconciler) apply(ctx context.Context, op string, batch Batch) error {
	if r.sink == nil {
		return fmt.Errorf("%s: %w", op, ErrSinkUnavailable)
	}
	if err := r.sink.Apply(ctx, batch); err != nil {
		r.metrics.RecordSinkFailure(ctx, op)
		r.logger.BatchDropped(ctx, op, batch, err)
		RecordError(ctx, err)
		SetSpanStatus(ctx, codes.Error, "sink apply failed")
		return fmt.Errorf("%s: apply batch: %w", op, err)
	}
	return nil
}

func (r *Reconciler) recordCompute(ctx context.Context, stats ComputeStats) {
	if stats.MappingFailures == 0 {
		return
	}
	r.metrics.RecordMappingFailures(ctx, stats.MappingFailures)
	r.logger.MappingFailures(ctx, stats.MappingFailures, stats.LastMappingError)
}

func (r *Reconciler) nextHandle() Handle {
	r.lastHandle++
	return r.lastHandle
}

// sortedRegions orders the visible set by offset, then handle, so every phase
// that walks it is deterministic.
func (r *Reconciler) sortedRegions() []*FoldRegion {
	out := make([]*FoldRegion, 0, len(r.visible))
	for _, region := range r.visible {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Interval.Offset != out[j].Interval.Offset {
			return out[i].Interval.Offset < out[j].Interval.Offset
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

func (r *Reconciler) sortedHandles() []Handle {
	regions := r.sortedRegions()
	if len(regions) == 0 {
		return nil
	}
	handles := make([]Handle, len(regions))
	for i, region := range regions {
		handles[i] = region.Handle
	}
	return handles
}

func indexOfAddition(additions []TargetEntry, d *FoldRegion) int {
	for i, a := range additions {
		if a.Interval.Offset == d.Interval.Offset && a.Discriminator == d.Discriminator {
			return i
		}
	}
	return -1
}

func indexOfUpdate(updates []pendingUpdate, d *FoldRegion) int {
	for i, u := range updates {
		if u.entry.Interval.Offset == d.Interval.Offset && u.entry.Discriminator == d.Discriminator {
			return i
		}
	}
	return -1
}

func batchAttributes(batch Batch, repaired int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("folding.batch.removals", len(batch.Removals)),
		attribute.Int("folding.batch.insertions", len(batch.Insertions)),
		attribute.Int("folding.batch.updates", len(batch.Updates)),
		attribute.Int("folding.batch.repaired", repaired),
	}
}
