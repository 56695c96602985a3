package evs

// propagate runs the single-version fixpoint: repeatedly intersect each
// dependency's candidate set with what every still-candidate depender
// version actually offers, until a full pass changes nothing.
//
// The loop is monotonically decreasing on total candidate cardinality and
// bounded below by zero, so it terminates. On fixpoint with no empty set it
// returns the per-project selection (the maximum remaining version). On an
// empty set it returns the failure; the caller must discard u wholesale, as
// partial narrowing from a failed pass is meaningless on its own.
func propagate(edges []concreteEdge, u *universe) (map[ProjectRoot]Version, *UnsatisfiableFailure) {
	for changed := true; changed; {
		changed = false
		for _, e := range edges {
			if !u.contains(e.from.root, e.from.v) {
				continue
			}
			cur := u.get(e.dep)
			narrowed := intersectVersions(cur, e.vs)
			if len(narrowed) == len(cur) {
				continue
			}
			if len(narrowed) == 0 {
				return nil, &UnsatisfiableFailure{
					Name:     e.dep,
					culprits: culpritsFor(edges, u, e),
				}
			}
			u.set(e.dep, narrowed)
			changed = true
		}
	}

	sel := make(map[ProjectRoot]Version, len(u.base))
	for _, pr := range u.projects() {
		best := u.best(pr)
		if best.Empty() {
			// A project in the closure with nothing known cannot be
			// selected; its edges were empty from the start.
			return nil, &UnsatisfiableFailure{Name: pr}
		}
		sel[pr] = best
	}
	return sel, nil
}

// culpritsFor gathers the requirement edges that jointly emptied the set for
// failure reporting, the triggering edge included.
func culpritsFor(edges []concreteEdge, u *universe, trigger concreteEdge) []dependency {
	var out []dependency
	for _, e := range edges {
		if e.dep != trigger.dep {
			continue
		}
		if e.from != trigger.from && !u.contains(e.from.root, e.from.v) {
			continue
		}
		out = append(out, dependency{
			depender: e.from.root,
			version:  e.from.v,
			dep:      e.dep,
			rng:      rangeOver(e.vs),
		})
	}
	return out
}

// rangeOver summarizes a concrete version set as its hull, for error text.
func rangeOver(vs []Version) Range {
	if len(vs) == 0 {
		return NoneRange()
	}
	// vs is descending.
	return Range{
		lo: &bound{v: vs[len(vs)-1], inc: true},
		hi: &bound{v: vs[0], inc: true},
	}
}
