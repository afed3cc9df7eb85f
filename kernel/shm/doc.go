// Package shm implements the shared-memory joint transport.
//
// A producing process opens a Segment with create=true; the segment is sized
// and laid out from Settings alone, so a consuming process that builds the
// same Settings and attaches with create=false agrees on every offset once
// CheckHeader has confirmed the persisted header. Blocks are guarded by a
// segment-wide frame counter used as a seqlock: writers wait only for other
// writers, readers retry a bounded number of times when a write overlaps
// their copy.
//
// Segment handles are explicit and never global. Nothing in this package
// starts goroutines or blocks on I/O; callers drive their own control loops.
package shm
