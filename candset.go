package evs

import "sort"

// universe is one candidate-set world: for every project in the solve
// closure, the versions still considered viable. The seed state is held in
// base, which is shared and never mutated; all narrowing lands in the
// per-universe diff overlay. Forking a fresh universe off the same seed is
// therefore O(1) regardless of the candidate population, which is what lets
// the group solver branch cheaply.
type universe struct {
	base map[ProjectRoot][]Version
	diff map[ProjectRoot][]Version
}

func newUniverse(base map[ProjectRoot][]Version) *universe {
	return &universe{
		base: base,
		diff: make(map[ProjectRoot][]Version),
	}
}

// fork returns a fresh universe over the same seed state. It does not copy
// any narrowing already applied to u.
func (u *universe) fork() *universe {
	return newUniverse(u.base)
}

// get returns the current candidate set for pr, descending. The returned
// slice must not be mutated.
func (u *universe) get(pr ProjectRoot) []Version {
	if vs, has := u.diff[pr]; has {
		return vs
	}
	return u.base[pr]
}

func (u *universe) set(pr ProjectRoot, vs []Version) {
	u.diff[pr] = vs
}

// contains reports whether v remains a candidate for pr.
func (u *universe) contains(pr ProjectRoot, v Version) bool {
	return containsVersion(u.get(pr), v)
}

// narrowed returns the projects this universe has constrained beyond the
// seed, sorted for deterministic iteration.
func (u *universe) narrowed() []ProjectRoot {
	out := make([]ProjectRoot, 0, len(u.diff))
	for pr := range u.diff {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// projects returns every project in the closure, sorted.
func (u *universe) projects() []ProjectRoot {
	out := make([]ProjectRoot, 0, len(u.base))
	for pr := range u.base {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// best returns the maximum remaining candidate for pr. Sets are kept in
// descending order, so this is a constant-time lookup.
func (u *universe) best(pr ProjectRoot) Version {
	vs := u.get(pr)
	if len(vs) == 0 {
		return emptyVersion
	}
	return vs[0]
}
