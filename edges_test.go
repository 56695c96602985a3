package evs

import (
	"reflect"
	"testing"
)

func lowReq(pr, lo, hi string) RegistryRequest {
	return RegistryRequest{Root: ProjectRoot(pr), Range: mkrng(lo, hi), Kind: LowEdge}
}

func highReq(pr, lo, hi string) RegistryRequest {
	return RegistryRequest{Root: ProjectRoot(pr), Range: mkrng(lo, hi), Kind: HighEdge}
}

func knownStrings(es *edgeStore, pr string) []string {
	var out []string
	for _, v := range es.KnownVersions(ProjectRoot(pr)) {
		out = append(out, v.String())
	}
	return out
}

func TestIngestIdempotent(t *testing.T) {
	req := lowReq("pkgE", "1.0.0", "")
	recs := []EdgeRecord{
		mkrec("1.0.0", false, nil),
		mkrec("1.9.0", false, nil),
	}

	es := newEdgeStore()
	fresh, err := es.ingest("pkgE", &req, recs)
	if err != nil {
		t.Fatalf("unexpected error on first ingest: %s", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("first ingest reported %d fresh versions, want 2", len(fresh))
	}

	fresh, err = es.ingest("pkgE", &req, recs)
	if err != nil {
		t.Fatalf("unexpected error on re-ingest: %s", err)
	}
	if len(fresh) != 0 {
		t.Errorf("re-ingest reported %d fresh versions, want 0", len(fresh))
	}
	if got := knownStrings(es, "pkgE"); !reflect.DeepEqual(got, []string{"1.9.0", "1.0.0"}) {
		t.Errorf("known versions after re-ingest = %v", got)
	}
}

func TestIngestCommutative(t *testing.T) {
	reqA := lowReq("pkgE", "1.0.0", "")
	recsA := []EdgeRecord{mkrec("1.0.0", false, nil), mkrec("2.9.0", false, nil)}
	reqB := highReq("pkgE", "1.0.0", "2.0.0")
	recsB := []EdgeRecord{mkrec("1.9.0", false, nil)}

	ab := newEdgeStore()
	if _, err := ab.ingest("pkgE", &reqA, recsA); err != nil {
		t.Fatal(err)
	}
	if _, err := ab.ingest("pkgE", &reqB, recsB); err != nil {
		t.Fatal(err)
	}

	ba := newEdgeStore()
	if _, err := ba.ingest("pkgE", &reqB, recsB); err != nil {
		t.Fatal(err)
	}
	if _, err := ba.ingest("pkgE", &reqA, recsA); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(knownStrings(ab, "pkgE"), knownStrings(ba, "pkgE")) {
		t.Errorf("ingest order changed known versions: %v vs %v",
			knownStrings(ab, "pkgE"), knownStrings(ba, "pkgE"))
	}
	for _, rng := range []Range{mkrng("1.0.0", "2.0.0"), mkrng("1.0.0", ""), mkrng("2.0.0", "3.0.0")} {
		if ab.coversRange("pkgE", rng) != ba.coversRange("pkgE", rng) {
			t.Errorf("ingest order changed coverage of %s", rng)
		}
	}
}

func TestIngestYankedLowCandidate(t *testing.T) {
	// A yanked low candidate arrives together with the next non-yanked
	// version above it. Both are recorded; only the non-yanked one is a
	// candidate.
	req := lowReq("pkgE", "1.0.0", "")
	recs := []EdgeRecord{
		mkrec("1.0.0", true, nil),
		mkrec("1.1.0", false, nil),
	}

	es := newEdgeStore()
	if _, err := es.ingest("pkgE", &req, recs); err != nil {
		t.Fatal(err)
	}

	if got := knownStrings(es, "pkgE"); !reflect.DeepEqual(got, []string{"1.1.0"}) {
		t.Errorf("known versions = %v, want [1.1.0]", got)
	}
	if !es.coversRange("pkgE", mkrng("1.0.0", "")) {
		t.Error("low response should cover the unbounded range above its boundary")
	}
}

func TestIngestYankConflict(t *testing.T) {
	req := lowReq("pkgE", "1.0.0", "")
	es := newEdgeStore()
	if _, err := es.ingest("pkgE", &req, []EdgeRecord{mkrec("1.0.0", false, nil)}); err != nil {
		t.Fatal(err)
	}

	_, err := es.ingest("pkgE", &req, []EdgeRecord{mkrec("1.0.0", true, nil)})
	if _, ok := err.(*ContractViolationFailure); !ok {
		t.Fatalf("conflicting yank status produced %v, want *ContractViolationFailure", err)
	}
}

func TestIngestOmittedLowCandidate(t *testing.T) {
	// Once the store knows a version at or above a boundary, a low response
	// for that boundary claiming nothing exists there contradicts it.
	first := lowReq("pkgE", "1.0.0", "")
	es := newEdgeStore()
	if _, err := es.ingest("pkgE", &first, []EdgeRecord{mkrec("1.5.0", false, nil)}); err != nil {
		t.Fatal(err)
	}

	second := lowReq("pkgE", "1.2.0", "")
	_, err := es.ingest("pkgE", &second, nil)
	if _, ok := err.(*ContractViolationFailure); !ok {
		t.Fatalf("omitted low candidate produced %v, want *ContractViolationFailure", err)
	}
}

func TestCoverageProgression(t *testing.T) {
	es := newEdgeStore()
	rng := mkrng("1.2.0", "2.0.0")
	if es.coversRange("pkgE", rng) {
		t.Fatal("an empty store covers nothing")
	}

	// A low response anchored below the requirement's boundary does not
	// span it when its resolved edge sits below the boundary too.
	low := lowReq("pkgE", "1.0.0", "")
	if _, err := es.ingest("pkgE", &low, []EdgeRecord{mkrec("1.0.0", false, nil), mkrec("2.9.0", false, nil)}); err != nil {
		t.Fatal(err)
	}
	if es.coversRange("pkgE", rng) {
		t.Error("low mark at 1.0.0 resolving to 1.0.0 must not cover a boundary at 1.2.0")
	}

	low2 := lowReq("pkgE", "1.2.0", "2.0.0")
	if _, err := es.ingest("pkgE", &low2, []EdgeRecord{mkrec("1.2.0", false, nil), mkrec("2.9.0", false, nil)}); err != nil {
		t.Fatal(err)
	}
	if es.coversRange("pkgE", rng) {
		t.Error("the upper boundary is still unresolved; the range must not be covered yet")
	}

	high := highReq("pkgE", "1.2.0", "2.0.0")
	if _, err := es.ingest("pkgE", &high, []EdgeRecord{mkrec("1.9.0", false, nil)}); err != nil {
		t.Fatal(err)
	}
	if !es.coversRange("pkgE", rng) {
		t.Error("both boundaries answered; the range must be covered")
	}

	// Coverage is monotone: the wider store still covers everything the
	// earlier marks established.
	if !es.coversRange("pkgE", mkrng("1.0.0", "")) {
		t.Error("earlier coverage was lost")
	}
}

func TestCoverageUnboundedTopNeedsHighestNonYanked(t *testing.T) {
	es := newEdgeStore()
	low := lowReq("pkgY", "1.0.0", "")
	// Every version yanked: the response carries no highest non-yanked
	// version, so nothing bounds discovery from above.
	if _, err := es.ingest("pkgY", &low, []EdgeRecord{mkrec("1.0.0", true, nil)}); err != nil {
		t.Fatal(err)
	}
	if es.coversRange("pkgY", mkrng("1.0.0", "")) {
		t.Error("an unbounded range needs the highest non-yanked guarantee to be covered")
	}
}

func TestCoverageExactRange(t *testing.T) {
	es := newEdgeStore()
	rng := NewRangeExact(mkv("1.2.0"))
	if es.coversRange("pkgE", rng) {
		t.Fatal("an empty store covers nothing")
	}

	low := lowReq("pkgE", "1.0.0", "")
	if _, err := es.ingest("pkgE", &low, []EdgeRecord{mkrec("1.2.0", false, nil), mkrec("2.9.0", false, nil)}); err != nil {
		t.Fatal(err)
	}
	if !es.coversRange("pkgE", rng) {
		t.Error("knowing the exact version settles a single-version range")
	}
}

func TestHighRequestWithoutBoundary(t *testing.T) {
	es := newEdgeStore()
	req := RegistryRequest{Root: "pkgE", Range: mkrng("1.0.0", ""), Kind: HighEdge}
	_, err := es.ingest("pkgE", &req, nil)
	if _, ok := err.(*ContractViolationFailure); !ok {
		t.Fatalf("high request without an upper boundary produced %v, want *ContractViolationFailure", err)
	}
}
