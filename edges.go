package evs

import "sort"

// edgeStore is the session's append-only record of which concrete versions
// are known to exist per project, and of how much boundary knowledge prior
// registry responses have established. Entries are only ever added; there is
// no delete operation, which is what makes ingest idempotent and commutative
// across response interleavings.
type edgeStore struct {
	t edgeTrie
}

// edgeVersion is one registry-confirmed concrete version.
type edgeVersion struct {
	v      Version
	yanked bool
}

// coverMark records a fulfilled boundary request: asked is the requested
// boundary, resolved the edge version the registry produced for it. An empty
// resolved means the registry affirmed that no version exists on that side of
// the boundary.
type coverMark struct {
	asked    bound
	resolved Version
}

// edgeEntry is the per-project record.
type edgeEntry struct {
	// vs holds every known concrete version, descending, yanked included.
	vs []edgeVersion
	// highKnown is the highest existing non-yanked version, as guaranteed by
	// any fulfilled low-edge response. Empty until the first such response.
	highKnown Version
	low, high []coverMark
}

func newEdgeStore() *edgeStore {
	return &edgeStore{t: newEdgeTrie()}
}

func (es *edgeStore) entry(pr ProjectRoot) *edgeEntry {
	if e, has := es.t.Get(pr); has {
		return e
	}
	return nil
}

func (es *edgeStore) ensureEntry(pr ProjectRoot) *edgeEntry {
	if e, has := es.t.Get(pr); has {
		return e
	}
	e := &edgeEntry{}
	es.t.Insert(pr, e)
	return e
}

// ingest merges the records of a registry response for pr into the store and
// returns the versions that were not previously known. Re-ingesting a known
// version with an identical yank status is a no-op; a conflicting yank status
// is a contract violation, since yank state is fixed per concrete version
// within a session.
//
// req, when non-nil, is the request that produced the response; it drives the
// defensive contract checks and the coverage bookkeeping behind coversRange.
func (es *edgeStore) ingest(pr ProjectRoot, req *RegistryRequest, recs []EdgeRecord) ([]Version, error) {
	e := es.ensureEntry(pr)

	if req != nil {
		if err := e.checkContract(*req, recs); err != nil {
			return nil, err
		}
	}

	var fresh []Version
	for _, rec := range recs {
		i := sort.Search(len(e.vs), func(i int) bool {
			return !e.vs[i].v.GreaterThan(rec.Version)
		})
		if i < len(e.vs) && e.vs[i].v.Equal(rec.Version) {
			if e.vs[i].yanked != rec.Yanked {
				return nil, &ContractViolationFailure{
					Request: reqOrZero(req),
					prob:    "yank status of " + rec.Version.String() + " conflicts with an earlier response",
				}
			}
			continue
		}
		e.vs = append(e.vs, edgeVersion{})
		copy(e.vs[i+1:], e.vs[i:])
		e.vs[i] = edgeVersion{v: rec.Version, yanked: rec.Yanked}
		fresh = append(fresh, rec.Version)
	}

	if req != nil {
		e.markCovered(*req, recs)
	}
	return fresh, nil
}

// markCovered records the boundary knowledge established by a fulfilled
// request.
func (e *edgeEntry) markCovered(req RegistryRequest, recs []EdgeRecord) {
	if h := highestNonYanked(recs); !h.Empty() && h.GreaterThan(e.highKnown) {
		e.highKnown = h
	}

	switch req.Kind {
	case LowEdge:
		b := lowBoundOf(req.Range)
		e.low = append(e.low, coverMark{asked: b, resolved: lowestAtOrAbove(recs, b.v)})
	case HighEdge:
		if req.Range.hi == nil {
			return
		}
		hi := *req.Range.hi
		resolved := highestBelow(recs, hi.v)
		if hi.inc {
			resolved = highestAtOrBelow(recs, hi.v)
		}
		e.high = append(e.high, coverMark{asked: hi, resolved: resolved})
	}
}

// projects returns every project the store has a record for, in key order.
func (es *edgeStore) projects() []ProjectRoot {
	out := make([]ProjectRoot, 0, es.t.Len())
	es.t.Walk(func(pr ProjectRoot, _ *edgeEntry) bool {
		out = append(out, pr)
		return false
	})
	return out
}

// KnownVersions returns the non-yanked versions known for pr so far, in
// descending order. The result is a fresh slice; callers may keep it.
func (es *edgeStore) KnownVersions(pr ProjectRoot) []Version {
	e := es.entry(pr)
	if e == nil {
		return nil
	}
	out := make([]Version, 0, len(e.vs))
	for _, ev := range e.vs {
		if !ev.yanked {
			out = append(out, ev.v)
		}
	}
	return out
}

// coversRange reports whether the store already holds enough boundary
// knowledge to guarantee that no undiscovered version could satisfy rng
// better than the versions already known. Both the low-edge and high-edge
// guarantees must be established by prior ingests.
func (es *edgeStore) coversRange(pr ProjectRoot, rng Range) bool {
	e := es.entry(pr)
	if e == nil {
		return false
	}
	if v, ok := rng.Exact(); ok {
		return e.lowCovered(bound{v: v, inc: true})
	}
	return e.lowCovered(lowBoundOf(rng)) && e.highCovered(rng.hi)
}

// lowCovered proves the low side: some fulfilled low request asked at or
// below b and resolved at or above it (or affirmed nothing exists), so the
// registry's no-gap guarantee spans b.
func (e *edgeEntry) lowCovered(b bound) bool {
	for _, m := range e.low {
		if m.asked.v.GreaterThan(b.v) {
			continue
		}
		if m.resolved.Empty() || !m.resolved.LessThan(b.v) {
			return true
		}
	}
	// An exact hit on a known version also settles the low edge.
	for _, ev := range e.vs {
		if ev.v.Equal(b.v) {
			return true
		}
	}
	return false
}

// highCovered proves the high side. An unbounded top needs only the highest
// non-yanked guarantee; a bounded one is also settled by a fulfilled high
// request whose no-gap span contains it.
func (e *edgeEntry) highCovered(hi *bound) bool {
	if hi == nil {
		return !e.highKnown.Empty()
	}
	if !e.highKnown.Empty() {
		// The highest existing non-yanked version is known. If the bound
		// admits it, nothing undiscovered in the range can top it.
		if e.highKnown.LessThan(hi.v) || (hi.inc && e.highKnown.Equal(hi.v)) {
			return true
		}
	}
	for _, m := range e.high {
		if m.asked.v.LessThan(hi.v) {
			continue
		}
		if hi.inc && !m.asked.inc && m.asked.v.Equal(hi.v) {
			continue
		}
		if m.resolved.Empty() || m.resolved.LessThan(hi.v) {
			return true
		}
		if hi.inc && m.resolved.Equal(hi.v) {
			return true
		}
	}
	return false
}

// lowBoundOf normalizes a range's low side for boundary work: an absent lower
// bound discovers from the floor version up, as the original requirement
// normalization does for wildcard requirements.
func lowBoundOf(rng Range) bound {
	if rng.lo != nil {
		return *rng.lo
	}
	return bound{v: floorVersion, inc: true}
}

// floorVersion anchors unbounded-below discovery requests.
var floorVersion = mustVersion("0.0.1")

func mustVersion(body string) Version {
	v, err := NewVersion(body)
	if err != nil {
		panic(err)
	}
	return v
}

// checkContract applies the defensive checks on a response relative to the
// request that produced it and what this entry already knows. The registry
// contract is assumed, not re-verified; a response can only be flagged when
// it contradicts previously ingested state. An empty response is always
// accepted on the low side, as it affirms no versions exist in the asked
// region.
func (e *edgeEntry) checkContract(req RegistryRequest, recs []EdgeRecord) error {
	switch req.Kind {
	case LowEdge:
		b := lowBoundOf(req.Range)
		if !e.knownAtOrAbove(b.v).Empty() && lowestAtOrAbove(recs, b.v).Empty() {
			return &ContractViolationFailure{
				Request: req,
				prob:    "response omits the low candidate despite known versions at or above the boundary",
			}
		}
	case HighEdge:
		if req.Range.hi == nil {
			return &ContractViolationFailure{
				Request: req,
				prob:    "high-edge request carries no upper boundary",
			}
		}
		if !e.knownBelow(req.Range.hi.v).Empty() && highestBelow(recs, req.Range.hi.v).Empty() {
			return &ContractViolationFailure{
				Request: req,
				prob:    "response omits the high candidate despite known versions below the boundary",
			}
		}
	}
	return nil
}

// knownAtOrAbove returns the lowest already-known version at or above v,
// yanked or not.
func (e *edgeEntry) knownAtOrAbove(v Version) Version {
	out := emptyVersion
	for _, ev := range e.vs {
		if ev.v.LessThan(v) {
			break
		}
		out = ev.v
	}
	return out
}

// knownBelow returns the highest already-known version strictly below v.
func (e *edgeEntry) knownBelow(v Version) Version {
	for _, ev := range e.vs {
		if ev.v.LessThan(v) {
			return ev.v
		}
	}
	return emptyVersion
}

func reqOrZero(req *RegistryRequest) RegistryRequest {
	if req == nil {
		return RegistryRequest{}
	}
	return *req
}

func lowestAtOrAbove(recs []EdgeRecord, v Version) Version {
	out := emptyVersion
	for _, rec := range recs {
		if rec.Version.LessThan(v) {
			continue
		}
		if out.Empty() || rec.Version.LessThan(out) {
			out = rec.Version
		}
	}
	return out
}

func highestBelow(recs []EdgeRecord, v Version) Version {
	out := emptyVersion
	for _, rec := range recs {
		if !rec.Version.LessThan(v) {
			continue
		}
		if rec.Version.GreaterThan(out) {
			out = rec.Version
		}
	}
	return out
}

func highestAtOrBelow(recs []EdgeRecord, v Version) Version {
	out := emptyVersion
	for _, rec := range recs {
		if rec.Version.GreaterThan(v) {
			continue
		}
		if rec.Version.GreaterThan(out) {
			out = rec.Version
		}
	}
	return out
}

func highestNonYanked(recs []EdgeRecord) Version {
	out := emptyVersion
	for _, rec := range recs {
		if !rec.Yanked && rec.Version.GreaterThan(out) {
			out = rec.Version
		}
	}
	return out
}
