// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func vectorClient(ts *httptest.Server, mutate func(*types.BackendConfig)) *VectorClient {
	cfg := types.BackendConfig{
		Name:    "vector",
		Kind:    types.BackendVector,
		BaseURL: ts.URL,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c := NewVector(cfg)
	c.Client = ts.Client()
	return c
}

func TestVectorRequestBody(t *testing.T) {
	var captured vectorRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer ts.Close()

	c := vectorClient(ts, func(cfg *types.BackendConfig) { cfg.MaxResults = 7 })
	if _, err := c.Call(context.Background(), "graph neural networks"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if captured.Text != "graph neural networks" {
		t.Errorf("request text = %q", captured.Text)
	}
	if captured.TopK != 7 {
		t.Errorf("top_k = %d, want 7", captured.TopK)
	}
}

func TestVectorDefaultTopK(t *testing.T) {
	var captured vectorRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer ts.Close()

	c := vectorClient(ts, nil)
	if _, err := c.Call(context.Background(), "test"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if captured.TopK != 20 {
		t.Errorf("top_k = %d, want 20 (default)", captured.TopK)
	}
}

func TestVectorResultMapping(t *testing.T) {
	resp := `{"items":[
		{"id":"v-1","content":"Closest match","score":0.97},
		{"id":"v-2","content":"Second match","score":0.81}]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, resp)
	}))
	defer ts.Close()

	c := vectorClient(ts, nil)
	items, err := c.Call(context.Background(), "test")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID != "v-1" || items[0].Confidence != 0.97 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Source != "vector" {
		t.Errorf("Source = %q, want vector", items[1].Source)
	}
}

func TestVectorHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := vectorClient(ts, nil)
	_, err := c.Call(context.Background(), "test")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != types.FailureUnavailable {
		t.Errorf("kind = %q, want unavailable", KindOf(err))
	}
}
