package evs

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SessionConfig carries everything needed to open a resolution session.
type SessionConfig struct {
	// Root identifies the project whose dependency tree is being resolved.
	Root ProjectRoot
	// RootVersion is the concrete version of the root being resolved for.
	RootVersion Version
	// Logger receives solve tracing. Nil gets a default logger.
	Logger *logrus.Logger
	// Cache, when set, is warm-started from and written through on ingest.
	Cache *BoltEdgeCache
}

// Session owns all resolution state for one root: the edge store, the
// accumulated manifests, and the requirement edges driving the planner. It
// is single-writer; hosts that parallelize outer requests must serialize
// calls into IngestResponse themselves.
type Session struct {
	l           *logrus.Logger
	root        ProjectRoot
	rootVersion Version
	es          *edgeStore
	manifests   map[ProjectRoot]map[string]*manifest
	deps        []dependency
	cache       *BoltEdgeCache
}

// NewSession opens a session for the given root. If a cache is configured,
// previously recorded edges are replayed into the store before the session
// is returned; replayed entries establish known versions and manifests but
// no boundary coverage, since coverage is only ever proven by live responses.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Root == "" {
		return nil, errors.New("session requires a root project")
	}
	if cfg.RootVersion.Empty() {
		return nil, errors.New("session requires a concrete root version")
	}

	l := cfg.Logger
	if l == nil {
		l = logrus.New()
	}

	s := &Session{
		l:           l,
		root:        cfg.Root,
		rootVersion: cfg.RootVersion,
		es:          newEdgeStore(),
		manifests:   make(map[ProjectRoot]map[string]*manifest),
		cache:       cfg.Cache,
	}

	if s.cache != nil {
		entries, err := s.cache.loadAll()
		if err != nil {
			return nil, errors.Wrap(err, "failed to warm-start session from edge cache")
		}
		for _, je := range entries {
			if err := s.ingest(je.Root, nil, []EdgeRecord{je.Record}, false); err != nil {
				return nil, errors.Wrapf(err, "failed to replay cached edge for %s", je.Root)
			}
		}
		if l.Level >= logrus.DebugLevel {
			l.WithField("entries", len(entries)).Debug("Warm-started session from edge cache")
		}
	}

	return s, nil
}

// DeclareRequirement registers a requirement edge sourced from a manifest:
// project at version depends on dep within rng. Redeclaring an identical
// edge is a no-op; a conflicting redeclaration is rejected, as manifests are
// immutable once populated. An empty rng never reaches the solver.
func (s *Session) DeclareRequirement(project ProjectRoot, version Version, dep ProjectRoot, rng Range) error {
	if rng.IsNone() {
		return &BadRangeFailure{}
	}
	if project == "" || dep == "" || version.Empty() {
		return errors.New("requirement edges need a project, version and dependency")
	}
	return s.declare(project, version, dep, rng)
}

func (s *Session) declare(project ProjectRoot, version Version, dep ProjectRoot, rng Range) error {
	pm, has := s.manifests[project]
	if !has {
		pm = make(map[string]*manifest)
		s.manifests[project] = pm
	}
	vk := version.String()
	m, has := pm[vk]
	if !has {
		m = &manifest{v: version, deps: make(map[ProjectRoot]Range)}
		pm[vk] = m
	}

	if prev, has := m.deps[dep]; has {
		if prev.String() == rng.String() {
			return nil
		}
		return errors.Errorf("%s at %s already requires %s within %s; cannot redeclare as %s",
			project, version, dep, prev, rng)
	}

	m.deps[dep] = rng
	s.deps = append(s.deps, dependency{depender: project, version: version, dep: dep, rng: rng})

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"project": project,
			"version": version.String(),
			"dep":     dep,
			"range":   rng.String(),
		}).Debug("Declared requirement edge")
	}
	return nil
}

// KnownProjects returns every project the session has edge records for, in
// lexical order.
func (s *Session) KnownProjects() []ProjectRoot {
	return s.es.projects()
}

// PendingRequests returns the batch of registry requests needed to cover
// every requirement declared so far. An empty batch means the session is
// saturated.
func (s *Session) PendingRequests() []RegistryRequest {
	return planRequests(s.es, s.deps)
}

// IsSaturated reports whether no further registry requests are needed to
// resolve the pending requirements with certainty.
func (s *Session) IsSaturated() bool {
	return len(s.PendingRequests()) == 0
}

// IngestResponse feeds a registry response into the session. Ingest is
// idempotent and commutative within a batch: responses to one batch may be
// fed in any order with identical results. Manifests carried by the records
// are recorded and their requirement edges join the planning set.
func (s *Session) IngestResponse(req RegistryRequest, entries []EdgeRecord) error {
	return s.ingest(req.Root, &req, entries, true)
}

func (s *Session) ingest(root ProjectRoot, req *RegistryRequest, entries []EdgeRecord, persist bool) error {
	fresh, err := s.es.ingest(root, req, entries)
	if err != nil {
		return err
	}

	for _, rec := range entries {
		for dep, rng := range rec.Deps {
			if rng.IsNone() {
				return &ContractViolationFailure{
					Request: reqOrZero(req),
					prob:    "manifest of " + rec.Version.String() + " declares an empty range on " + string(dep),
				}
			}
			if err := s.declare(root, rec.Version, dep, rng); err != nil {
				return err
			}
		}
	}

	if persist && s.cache != nil && len(fresh) > 0 {
		kept := make([]EdgeRecord, 0, len(fresh))
		for _, rec := range entries {
			if containsVersionOf(fresh, rec.Version) {
				kept = append(kept, rec)
			}
		}
		if err := s.cache.put(root, kept); err != nil {
			s.l.WithError(err).Warn("Failed to write ingested edges through to cache")
		}
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"root":  root,
			"total": len(entries),
			"fresh": len(fresh),
		}).Debug("Ingested registry response")
	}
	return nil
}

func containsVersionOf(vs []Version, v Version) bool {
	for _, x := range vs {
		if x.Equal(v) {
			return true
		}
	}
	return false
}

// TrySolve attempts a solution against the current snapshot. It first tries
// single-version propagation, then falls back to group solving. Solving is
// pure: a failed attempt mutates nothing, so callers may interleave TrySolve
// with further fetching under any policy they like.
func (s *Session) TrySolve() (Solution, error) {
	if _, has := s.manifests[s.root][s.rootVersion.String()]; !has {
		return Solution{}, errors.Errorf("no requirements declared for root %s at %s", s.root, s.rootVersion)
	}
	if s.l.Level >= logrus.DebugLevel {
		s.l.WithField("projects", s.es.t.Len()).Debug("Attempting solve over current snapshot")
	}

	edges, closure := reduceDeps(s.es, s.manifests, s.root)

	base := make(map[ProjectRoot][]Version, len(closure))
	for pr := range closure {
		base[pr] = s.es.KnownVersions(pr)
	}
	base[s.root] = []Version{s.rootVersion}

	slv := &solver{
		l:     s.l,
		edges: edges,
		seed:  newUniverse(base),
	}
	return slv.solve()
}

// Resolve drives the full fetch/ingest/solve loop against a registry until
// saturation, then solves. Batches are dispatched concurrently but ingested
// serially, in batch order.
func (s *Session) Resolve(ctx context.Context, reg Registry) (Solution, error) {
	var prev string
	for {
		batch := s.PendingRequests()
		if len(batch) == 0 {
			break
		}

		// A batch that did not advance coverage at all would loop forever;
		// the registry is not honoring its edge guarantees.
		sig := batchSignature(batch)
		if sig == prev {
			return Solution{}, &ContractViolationFailure{
				Request: batch[0],
				prob:    "responses left the request uncovered; refusing to re-dispatch an identical batch",
			}
		}
		prev = sig
		if s.l.Level >= logrus.DebugLevel {
			s.l.WithField("requests", len(batch)).Debug("Dispatching planned request batch")
		}

		results, err := FetchBatch(ctx, reg, batch)
		if err != nil {
			return Solution{}, err
		}
		for _, res := range results {
			if err := s.IngestResponse(res.Request, res.Entries); err != nil {
				return Solution{}, err
			}
		}
	}
	return s.TrySolve()
}

func batchSignature(batch []RegistryRequest) string {
	var sig string
	for _, req := range batch {
		sig += req.key() + "\n"
	}
	return sig
}
