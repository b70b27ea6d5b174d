// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package memory

// ring is a fixed-bound FIFO. It grows by appending until it reaches its
// bound and then overwrites the oldest slot, so both push and eviction are O(1).
type ring struct {
	buf   []Entry
	head  int
	bound int
}

func newRing(bound int) *ring {
	return &ring{bound: bound}
}

// push appends e and reports the evicted entry, if any.
func (r *ring) push(e Entry) (Entry, bool) {
	if len(r.buf) < r.bound {
		r.buf = append(r.buf, e)
		return Entry{}, false
	}
	old := r.buf[r.head]
	r.buf[r.head] = e
	r.head = (r.head + 1) % r.bound
	return old, true
}

func (r *ring) len() int {
	return len(r.buf)
}

// at returns the i-th oldest entry.
func (r *ring) at(i int) Entry {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) reset() {
	r.buf = nil
	r.head = 0
}
