package evs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistrySourceFetchEdges(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(rawEdges{
			Edges: []rawEdge{
				{Version: "1.0.0"},
				{Version: "1.2.0", Deps: map[string]rawRange{
					"example.net/e": {Lower: "1.0.0", LowerInc: true, Upper: "2.0.0"},
				}},
				{Version: "0.9.0", Yanked: true},
			},
		})
	}))
	defer srv.Close()

	src, err := NewRegistrySource(context.Background(), RegistryConfig{URL: srv.URL, Token: "sekrit"})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	req := RegistryRequest{Root: "example.net/b", Range: mkrng("1.0.0", "2.0.0"), Kind: LowEdge}
	recs, err := src.FetchEdges(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/api/v1/projects/example.net%2Fb/edges" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	for param, want := range map[string]string{
		"kind":     "low",
		"lower":    "1.0.0",
		"lowerInc": "1",
		"upper":    "2.0.0",
		"upperInc": "0",
	} {
		if len(gotQuery[param]) != 1 || gotQuery[param][0] != want {
			t.Errorf("query %s = %v, want %q", param, gotQuery[param], want)
		}
	}

	if len(recs) != 3 {
		t.Fatalf("decoded %d records, want 3", len(recs))
	}
	if !recs[1].Version.Equal(mkv("1.2.0")) {
		t.Errorf("record 1 version = %s, want 1.2.0", recs[1].Version)
	}
	if rng, has := recs[1].Deps["example.net/e"]; !has || rng.String() != ">=1.0.0 <2.0.0" {
		t.Errorf("record 1 deps = %v", recs[1].Deps)
	}
	if !recs[2].Yanked {
		t.Error("yank status was dropped in decoding")
	}
}

func TestRegistrySourceErrors(t *testing.T) {
	if _, err := NewRegistrySource(context.Background(), RegistryConfig{}); err == nil {
		t.Error("expected an error for a source without a URL")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := NewRegistrySource(context.Background(), RegistryConfig{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	req := RegistryRequest{Root: "example.net/b", Range: mkrng("1.0.0", ""), Kind: LowEdge}
	if _, err := src.FetchEdges(context.Background(), req); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestRegistrySourceCloseCancelsCalls(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	src, err := NewRegistrySource(context.Background(), RegistryConfig{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		req := RegistryRequest{Root: "example.net/b", Range: mkrng("1.0.0", ""), Kind: LowEdge}
		_, err := src.FetchEdges(context.Background(), req)
		done <- err
	}()

	src.Close()
	if err := <-done; err == nil {
		t.Error("expected the closed source to cancel its outstanding call")
	}
}

func TestRegistryConfigFromEnv(t *testing.T) {
	t.Setenv("EVSREGISTRYURL", "https://edges.example.net")
	t.Setenv("EVSREGISTRYTOKEN", "sekrit")

	cfg := RegistryConfigFromEnv()
	if cfg.URL != "https://edges.example.net" || cfg.Token != "sekrit" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestFetchBatchPreservesOrder(t *testing.T) {
	reg := mkreg(map[ProjectRoot][]fixv{
		"pkgA": {{v: "1.0.0"}},
		"pkgB": {{v: "2.0.0"}},
		"pkgC": {{v: "3.0.0"}},
	})

	batch := []RegistryRequest{
		{Root: "pkgC", Range: mkrng("1.0.0", ""), Kind: LowEdge},
		{Root: "pkgA", Range: mkrng("1.0.0", ""), Kind: LowEdge},
		{Root: "pkgB", Range: mkrng("1.0.0", ""), Kind: LowEdge},
	}

	results, err := FetchBatch(context.Background(), reg, batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.Request.Root != batch[i].Root {
			t.Errorf("result %d pairs %s with %s", i, res.Request.Root, batch[i].Root)
		}
		if len(res.Entries) != 1 {
			t.Errorf("result %d carries %d entries, want 1", i, len(res.Entries))
		}
	}
}
