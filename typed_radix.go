package evs

import (
	radix "github.com/armon/go-radix"
)

// Typed wrapper around the radix tree keyed by ProjectRoot. Just a simple
// shim that lets us avoid type asserting everywhere else.
//
// Walks beyond the ones we actually need aren't implemented.

type edgeTrie struct {
	t *radix.Tree
}

func newEdgeTrie() edgeTrie {
	return edgeTrie{
		t: radix.New(),
	}
}

// Get is used to lookup a specific project, returning the entry and if it was found.
func (t edgeTrie) Get(pr ProjectRoot) (*edgeEntry, bool) {
	if v, has := t.t.Get(string(pr)); has {
		return v.(*edgeEntry), has
	}
	return nil, false
}

// Insert is used to add a new entry or update an existing entry. Returns if updated.
func (t edgeTrie) Insert(pr ProjectRoot, e *edgeEntry) (*edgeEntry, bool) {
	if v2, had := t.t.Insert(string(pr), e); had {
		return v2.(*edgeEntry), had
	}
	return nil, false
}

// Len is used to return the number of elements in the tree.
func (t edgeTrie) Len() int {
	return t.t.Len()
}

// Walk visits every entry in the tree in key order.
func (t edgeTrie) Walk(fn func(pr ProjectRoot, e *edgeEntry) bool) {
	t.t.Walk(func(s string, v interface{}) bool {
		return fn(ProjectRoot(s), v.(*edgeEntry))
	})
}
