package evs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Registry is the consumed edge-discovery interface: given a boundary
// request, return the concrete version and dependency data the contract
// guarantees for it. Any transport producing this shape suffices.
type Registry interface {
	FetchEdges(ctx context.Context, req RegistryRequest) ([]EdgeRecord, error)
}

// RegistryConfig holds the endpoint and credentials of an edge registry.
type RegistryConfig struct {
	URL   string
	Token string
}

// RegistryConfigFromEnv reads the registry endpoint from EVSREGISTRYURL and
// EVSREGISTRYTOKEN.
func RegistryConfigFromEnv() RegistryConfig {
	return RegistryConfig{
		URL:   os.Getenv("EVSREGISTRYURL"),
		Token: os.Getenv("EVSREGISTRYTOKEN"),
	}
}

// RegistrySource is the HTTP implementation of Registry. Identical in-flight
// requests are coalesced, and every call's context is joined with the
// source's own lifetime context, so tearing the source down cancels all of
// its outstanding calls.
type RegistrySource struct {
	url    string
	token  string
	client *http.Client
	ctx    context.Context
	cancel context.CancelFunc
	sf     singleflight.Group
}

// NewRegistrySource creates an HTTP registry source. ctx bounds the lifetime
// of the source itself, not of any single call.
func NewRegistrySource(ctx context.Context, cfg RegistryConfig) (*RegistrySource, error) {
	if cfg.URL == "" {
		return nil, errors.New("registry source requires an endpoint URL")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, errors.Wrapf(err, "invalid registry URL %q", cfg.URL)
	}

	sctx, cancel := context.WithCancel(ctx)
	return &RegistrySource{
		url:    cfg.URL,
		token:  cfg.Token,
		client: http.DefaultClient,
		ctx:    sctx,
		cancel: cancel,
	}, nil
}

// Close cancels all outstanding calls against the source.
func (s *RegistrySource) Close() {
	s.cancel()
}

// FetchEdges performs one boundary request. Concurrent callers asking for
// the same boundary share a single round trip.
func (s *RegistrySource) FetchEdges(ctx context.Context, req RegistryRequest) ([]EdgeRecord, error) {
	v, err, _ := s.sf.Do(req.key(), func() (interface{}, error) {
		cctx, cancel := constext.Cons(ctx, s.ctx)
		defer cancel()
		return s.execFetchEdges(cctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.([]EdgeRecord), nil
}

func (s *RegistrySource) execFetchEdges(ctx context.Context, req RegistryRequest) ([]EdgeRecord, error) {
	q := url.Values{}
	q.Set("kind", req.Kind.String())
	lo := lowBoundOf(req.Range)
	q.Set("lower", lo.v.String())
	q.Set("lowerInc", boolParam(lo.inc))
	if req.Range.hi != nil {
		q.Set("upper", req.Range.hi.v.String())
		q.Set("upperInc", boolParam(req.Range.hi.inc))
	}

	// The project root is a single path segment; slashes within it must
	// stay escaped, so the URL is assembled as a string rather than via
	// url.URL.Path.
	endpoint := strings.TrimSuffix(s.url, "/") +
		"/api/v1/projects/" + url.PathEscape(string(req.Root)) + "/edges?" + q.Encode()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(hreq)
	if err != nil {
		return nil, errors.Wrapf(err, "edge request for %s failed", req.Root)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s %s", endpoint, http.StatusText(resp.StatusCode))
	}

	var raw rawEdges
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "malformed edge response for %s", req.Root)
	}
	return raw.toRecords()
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

type rawEdges struct {
	Edges []rawEdge `json:"edges"`
}

type rawEdge struct {
	Version string              `json:"version"`
	Yanked  bool                `json:"yanked"`
	Deps    map[string]rawRange `json:"deps,omitempty"`
}

type rawRange struct {
	Lower    string `json:"lower,omitempty"`
	LowerInc bool   `json:"lowerInc,omitempty"`
	Upper    string `json:"upper,omitempty"`
	UpperInc bool   `json:"upperInc,omitempty"`
}

func (re rawEdges) toRecords() ([]EdgeRecord, error) {
	recs := make([]EdgeRecord, 0, len(re.Edges))
	for _, e := range re.Edges {
		v, err := NewVersion(e.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "unparseable version %q in edge response", e.Version)
		}
		rec := EdgeRecord{Version: v, Yanked: e.Yanked}
		if len(e.Deps) > 0 {
			rec.Deps = make(map[ProjectRoot]Range, len(e.Deps))
			for dep, rr := range e.Deps {
				rng, err := rr.toRange()
				if err != nil {
					return nil, errors.Wrapf(err, "bad range on dependency %s of %s", dep, e.Version)
				}
				rec.Deps[ProjectRoot(dep)] = rng
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (rr rawRange) toRange() (Range, error) {
	var lo, hi Version
	var err error
	if rr.Lower != "" {
		if lo, err = NewVersion(rr.Lower); err != nil {
			return Range{}, err
		}
	}
	if rr.Upper != "" {
		if hi, err = NewVersion(rr.Upper); err != nil {
			return Range{}, err
		}
	}
	return NewRange(lo, rr.LowerInc, hi, rr.UpperInc)
}

// BatchResult pairs a fetched response with the request that produced it.
type BatchResult struct {
	Request RegistryRequest
	Entries []EdgeRecord
}

// fetchConcurrency bounds in-flight requests per batch.
const fetchConcurrency = 8

// FetchBatch dispatches a planned batch concurrently and returns the
// results in batch order. No ordering is imposed between the round trips
// themselves; ingest is commutative, so callers may also feed results in any
// other order they like.
func FetchBatch(ctx context.Context, reg Registry, batch []RegistryRequest) ([]BatchResult, error) {
	results := make([]BatchResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, req := range batch {
		i, req := i, req
		g.Go(func() error {
			entries, err := reg.FetchEdges(gctx, req)
			if err != nil {
				return err
			}
			results[i] = BatchResult{Request: req, Entries: entries}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
