// Package structure holds the outline tree that drives folding.
//
// Nodes live in an arena and are addressed by NodeID. IDs are handed out by an
// Allocator that outlives any single Tree, so a parser that rebuilds the tree
// after an edit can keep the IDs of subtrees it did not touch and hand fresh IDs
// to the ones it reallocated. Consumers compare nodes across parse generations
// by ID equality only.
package structure
