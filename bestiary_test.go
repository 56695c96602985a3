package evs

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// Fixture helpers. These panic on bad input so that table declarations stay
// terse; a panic here means the fixture itself is broken, not the code under
// test.

func mkv(body string) Version {
	v, err := NewVersion(body)
	if err != nil {
		panic(fmt.Sprintf("error creating fixture version from %q: %s", body, err))
	}
	return v
}

// mkrng builds a [lo, hi) range from fixture strings. An empty string leaves
// that side unbounded.
func mkrng(lo, hi string) Range {
	var l, h Version
	if lo != "" {
		l = mkv(lo)
	}
	if hi != "" {
		h = mkv(hi)
	}
	r, err := NewRange(l, true, h, false)
	if err != nil {
		panic(fmt.Sprintf("error creating fixture range [%s, %s): %s", lo, hi, err))
	}
	return r
}

func mkrec(body string, yanked bool, deps map[ProjectRoot]Range) EdgeRecord {
	return EdgeRecord{Version: mkv(body), Yanked: yanked, Deps: deps}
}

func mkdeps(pairs ...interface{}) map[ProjectRoot]Range {
	if len(pairs)%2 != 0 {
		panic("mkdeps needs dep/range pairs")
	}
	out := make(map[ProjectRoot]Range, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out[ProjectRoot(pairs[i].(string))] = pairs[i+1].(Range)
	}
	return out
}

// fixv is one version a fixture registry serves for a project.
type fixv struct {
	v      string
	yanked bool
	deps   map[ProjectRoot]Range
}

// fixtureRegistry is an in-memory Registry honoring the boundary-edge
// response guarantees: a low request answers with the exact boundary version
// or the lowest one above it, plus the highest non-yanked version, plus the
// next non-yanked version above a yanked low candidate; a high request
// answers with the version directly below the boundary, widened to the
// nearest non-yanked neighbors when that candidate is yanked.
type fixtureRegistry struct {
	projects map[ProjectRoot][]fixv
	calls    []RegistryRequest
}

func mkreg(projects map[ProjectRoot][]fixv) *fixtureRegistry {
	return &fixtureRegistry{projects: projects}
}

func (r *fixtureRegistry) FetchEdges(_ context.Context, req RegistryRequest) ([]EdgeRecord, error) {
	r.calls = append(r.calls, req)

	fvs := make([]fixv, len(r.projects[req.Root]))
	copy(fvs, r.projects[req.Root])
	sort.Slice(fvs, func(i, j int) bool {
		return mkv(fvs[i].v).LessThan(mkv(fvs[j].v))
	})

	var picked []int
	switch req.Kind {
	case LowEdge:
		b := lowBoundOf(req.Range)
		low := -1
		for i := range fvs {
			if !mkv(fvs[i].v).LessThan(b.v) {
				low = i
				break
			}
		}
		if low >= 0 {
			picked = append(picked, low)
		}
		for i := len(fvs) - 1; i >= 0; i-- {
			if !fvs[i].yanked {
				picked = append(picked, i)
				break
			}
		}
		if low >= 0 && fvs[low].yanked {
			for i := low + 1; i < len(fvs); i++ {
				if !fvs[i].yanked {
					picked = append(picked, i)
					break
				}
			}
		}
	case HighEdge:
		hi := req.Range.hi
		high := -1
		for i := len(fvs) - 1; i >= 0; i-- {
			v := mkv(fvs[i].v)
			if v.LessThan(hi.v) || (hi.inc && v.Equal(hi.v)) {
				high = i
				break
			}
		}
		if high >= 0 {
			picked = append(picked, high)
			if fvs[high].yanked {
				for i := high - 1; i >= 0; i-- {
					if !fvs[i].yanked {
						picked = append(picked, i)
						break
					}
				}
				for i := high + 1; i < len(fvs); i++ {
					if !fvs[i].yanked {
						picked = append(picked, i)
						break
					}
				}
			}
		}
	}

	var recs []EdgeRecord
	seen := make(map[int]struct{})
	for _, i := range picked {
		if _, has := seen[i]; has {
			continue
		}
		seen[i] = struct{}{}
		recs = append(recs, mkrec(fvs[i].v, fvs[i].yanked, fvs[i].deps))
	}
	return recs, nil
}

// mksession opens a session for root@v with no cache and quiet logging.
func mksession(root string, v string) *Session {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s, err := NewSession(SessionConfig{
		Root:        ProjectRoot(root),
		RootVersion: mkv(v),
		Logger:      l,
	})
	if err != nil {
		panic(fmt.Sprintf("error creating fixture session: %s", err))
	}
	return s
}
