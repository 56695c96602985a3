package evs

import "sort"

// planRequests computes the minimal batch of registry requests needed to
// bring every given requirement edge to coverage. Requirements the store can
// already answer produce nothing; a range wholly contained in another range
// on the same project is dropped in favor of the wider one, since the
// registry contract holds for any valid range and a superset request is
// always safe. Requests that share a (project, kind, boundary) triple are
// emitted once.
//
// Merging never goes beyond containment. A hull wider than any declared
// range would carry boundaries no requirement asked about, and its answers
// could never settle the constituent boundaries, so planning would not
// converge.
//
// An empty batch is the saturation signal: every known requirement is
// covered. Whether to solve then or keep declaring is the caller's policy.
func planRequests(es *edgeStore, deps []dependency) []RegistryRequest {
	uncovered := make(map[ProjectRoot][]Range)
	for _, d := range deps {
		if es.coversRange(d.dep, d.rng) {
			continue
		}
		uncovered[d.dep] = append(uncovered[d.dep], d.rng)
	}

	var batch []RegistryRequest
	seen := make(map[string]struct{})
	for pr, rngs := range uncovered {
		e := es.entry(pr)
		for _, rng := range mergeRanges(rngs) {
			if e == nil || !e.lowCovered(lowBoundOf(rng)) {
				addRequest(&batch, seen, RegistryRequest{Root: pr, Range: rng, Kind: LowEdge})
			}
			if _, exact := rng.Exact(); exact {
				// A single-version requirement is settled entirely by the
				// low-edge answer for that version.
				continue
			}
			if rng.hi != nil && (e == nil || !e.highCovered(rng.hi)) {
				addRequest(&batch, seen, RegistryRequest{Root: pr, Range: rng, Kind: HighEdge})
			}
		}
	}

	// Fixed order keeps batches reproducible across runs on identical input.
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].key() < batch[j].key()
	})
	return batch
}

func addRequest(batch *[]RegistryRequest, seen map[string]struct{}, req RegistryRequest) {
	// Deduplicate on the (project, kind, boundary) triple: requests that
	// share a boundary are answered identically on that side.
	b := lowBoundOf(req.Range)
	if req.Kind == HighEdge {
		b = *req.Range.hi
	}
	k := string(req.Root) + "|" + req.Kind.String() + "|" + b.v.String()
	if b.inc {
		k += "i"
	}
	if _, has := seen[k]; has {
		return
	}
	seen[k] = struct{}{}
	*batch = append(*batch, req)
}

// mergeRanges drops every range wholly contained in a sibling, keeping one
// widest representative per containment family. Overlapping-but-uncontained
// ranges stay separate; each still needs its own boundaries answered.
func mergeRanges(rngs []Range) []Range {
	if len(rngs) <= 1 {
		return rngs
	}

	var out []Range
	for _, r := range rngs {
		keep := true
		for j := 0; j < len(out); {
			if containsRange(out[j], r) {
				keep = false
				break
			}
			if containsRange(r, out[j]) {
				out = append(out[:j], out[j+1:]...)
				continue
			}
			j++
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// containsRange reports whether a admits every version b admits.
func containsRange(a, b Range) bool {
	if a.none {
		return false
	}
	if b.none {
		return true
	}
	if a.lo != nil {
		if b.lo == nil {
			return false
		}
		if c := a.lo.v.Compare(b.lo.v); c > 0 || (c == 0 && !a.lo.inc && b.lo.inc) {
			return false
		}
	}
	if a.hi != nil {
		if b.hi == nil {
			return false
		}
		if c := a.hi.v.Compare(b.hi.v); c < 0 || (c == 0 && !a.hi.inc && b.hi.inc) {
			return false
		}
	}
	return true
}
