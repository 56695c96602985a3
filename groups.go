package evs

// group is one independently-narrowed candidate universe, representing a
// single installable slot. A project demanded in incompatible ways lands in
// more than one group and legitimately resolves to more than one version.
type group struct {
	u *universe
}

// solveGroups is the fallback for when single-version propagation fails. It
// maintains an ordered group list, each seeded identically to the propagation
// seed, and places every edge into the first group whose current candidates
// for the edge's dependency still intersect the edge's concrete set. An edge
// no existing group admits opens a new group forked from the untouched seed.
//
// First-fit placement is a deterministic policy choice, not a proven optimum;
// edges arrive in the reducer's fixed order, so results are reproducible.
//
// If even a freshly-seeded group cannot admit an edge, the dependency has no
// compatible concrete version at all and no amount of branching helps.
func solveGroups(edges []concreteEdge, seed *universe) ([]group, *UnsatisfiableFailure) {
	var groups []group

	for _, e := range edges {
		placed := false
		for i := range groups {
			g := &groups[i]
			narrowed := intersectVersions(g.u.get(e.dep), e.vs)
			if len(narrowed) == 0 {
				continue
			}
			g.u.set(e.dep, narrowed)
			placed = true
			break
		}
		if placed {
			continue
		}

		fresh := seed.fork()
		narrowed := intersectVersions(fresh.get(e.dep), e.vs)
		if len(narrowed) == 0 {
			return nil, &UnsatisfiableFailure{
				Name: e.dep,
				culprits: []dependency{{
					depender: e.from.root,
					version:  e.from.v,
					dep:      e.dep,
					rng:      rangeOver(e.vs),
				}},
			}
		}
		fresh.set(e.dep, narrowed)
		groups = append(groups, group{u: fresh})
	}

	// No merge post-pass: under first-fit placement the edge that opened a
	// group had an empty intersection against its predecessor's narrowing on
	// the same dependency, and narrowing is monotone, so adjacent groups are
	// always in conflict on at least one dependency.
	return groups, nil
}

// selections extracts the final per-project choices. The first group covers
// the full closure; later groups carry only the projects they actually
// constrained, to avoid duplicating every unconstrained project into every
// slot.
func selections(groups []group) []map[ProjectRoot]Version {
	out := make([]map[ProjectRoot]Version, 0, len(groups))
	for i, g := range groups {
		var prs []ProjectRoot
		if i == 0 {
			prs = g.u.projects()
		} else {
			prs = g.u.narrowed()
		}
		sel := make(map[ProjectRoot]Version, len(prs))
		for _, pr := range prs {
			if best := g.u.best(pr); !best.Empty() {
				sel[pr] = best
			}
		}
		out = append(out, sel)
	}
	return out
}
