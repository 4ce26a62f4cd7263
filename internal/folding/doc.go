// Package folding keeps an editor's fold regions in step with a structure tree
// that is rebuilt after every edit.
//
// The parser that feeds this package reallocates nodes for any region it had to
// re-parse, even when the region looks the same to the user. A naive "throw the
// old folds away and build new ones" approach would therefore reset the user's
// collapsed/expanded choices on every keystroke. The Reconciler instead diffs the
// regions the tree asks for against the regions already on screen and emits the
// smallest batch of removals, insertions and updates that reconciles the two,
// reusing handles wherever it can.
//
// # Core Concepts
//
// Target set: what the tree wants right now. RegionComputer walks the tree and
// produces one TargetEntry per (node, discriminator) pair: one for every
// multi-line node of a foldable kind, and one for every multi-line leading
// comment block.
//
// Visible set: the FoldRegions currently on screen, keyed by Handle. It is
// owned by the Reconciler; the UI only ever toggles Collapsed through
// SetCollapsed.
//
// Handle: the opaque identity of a region as the UI sees it. The UI remembers
// collapsed state per handle, so handle churn is user-visible state loss.
//
// Batch: removals, insertions and updates applied to the RegionSink as a unit.
//
// # Reconciliation
//
// Reconcile runs five phases to completion:
//
//	A  compute the target set
//	B  group the visible set by bound node
//	C  partition targets into additions, updates and deletions
//	D  repair: a deletion whose start offset and discriminator match an
//	   addition (or update) keeps its handle and is rebound to the new node
//	E  hand the batch to the sink, then commit it to the visible set
//
// The repair pass only matches on start offset. A region whose start moved
// (for example because a line was inserted above it while its node was also
// reallocated) surfaces as a removal plus an insertion.
//
// # Failure Handling
//
// Nothing in this package interrupts editing. Nodes whose lines no longer map
// onto the buffer are left out of the target set. If the sink rejects a batch
// the visible set is left untouched and the next Reconcile re-derives the same
// changes. Calls before Install or after Uninstall do nothing.
//
// # Usage
//
//	r := folding.NewReconciler(mapper, folding.DefaultConfig(),
//	    folding.WithLogger(folding.NewLogger(zapLogger)))
//	r.Install(ctx, tree, sink)
//
//	// after every re-parse
//	batch, err := r.Reconcile(ctx, newTree)
//
// Reconciler is not safe for concurrent use; callers serialise access the same
// way they serialise access to the rest of the editor state.
package folding
