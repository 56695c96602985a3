package evs

import "sort"

// concreteEdge is one reduced requirement edge: the concrete versions of dep
// that from's manifest admits, given everything the edge store knows right
// now. Yanked versions are never admitted.
type concreteEdge struct {
	from atom
	dep  ProjectRoot
	vs   []Version
}

// manifest holds the dependency requirements declared by one concrete
// version of a project. Immutable once populated; the session never
// re-fetches a manifest it already knows.
type manifest struct {
	v    Version
	deps map[ProjectRoot]Range
}

// reduceDeps flattens every known manifest within the closure of root into
// concrete edges against the store's known versions. This is a pure,
// repeatable projection: re-running it after the store grows is always safe
// and touches no other state. A requirement that currently intersects zero
// known versions still produces its (empty) edge - it is the solver's job to
// decide what that means, not the reducer's.
//
// Edges come back in a fixed order - by depender, then version descending,
// then dependency key - so downstream results are reproducible.
func reduceDeps(es *edgeStore, manifests map[ProjectRoot]map[string]*manifest, root ProjectRoot) ([]concreteEdge, map[ProjectRoot]struct{}) {
	closure := closureOf(manifests, root)

	var edges []concreteEdge
	for pr := range closure {
		for _, m := range orderedManifests(manifests[pr]) {
			for _, dep := range orderedDeps(m.deps) {
				rng := m.deps[dep]
				var vs []Version
				for _, v := range es.KnownVersions(dep) {
					if rng.Matches(v) {
						vs = append(vs, v)
					}
				}
				edges = append(edges, concreteEdge{
					from: atom{root: pr, v: m.v},
					dep:  dep,
					vs:   vs,
				})
			}
		}
	}

	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from.root != b.from.root {
			return a.from.root < b.from.root
		}
		if !a.from.v.Equal(b.from.v) {
			return a.from.v.GreaterThan(b.from.v)
		}
		return a.dep < b.dep
	})
	return edges, closure
}

// closureOf walks manifests from root, collecting every project reachable
// through any known manifest's dependency keys.
func closureOf(manifests map[ProjectRoot]map[string]*manifest, root ProjectRoot) map[ProjectRoot]struct{} {
	closure := map[ProjectRoot]struct{}{root: {}}
	queue := []ProjectRoot{root}
	for len(queue) > 0 {
		pr := queue[0]
		queue = queue[1:]
		for _, m := range manifests[pr] {
			for dep := range m.deps {
				if _, has := closure[dep]; !has {
					closure[dep] = struct{}{}
					queue = append(queue, dep)
				}
			}
		}
	}
	return closure
}

func orderedManifests(ms map[string]*manifest) []*manifest {
	out := make([]*manifest, 0, len(ms))
	for _, m := range ms {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].v.GreaterThan(out[j].v)
	})
	return out
}

func orderedDeps(deps map[ProjectRoot]Range) []ProjectRoot {
	out := make([]ProjectRoot, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
