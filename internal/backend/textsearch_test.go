// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func textSearchClient(ts *httptest.Server, mutate func(*types.BackendConfig)) *TextSearchClient {
	cfg := types.BackendConfig{
		Name:    "textsearch",
		Kind:    types.BackendTextSearch,
		BaseURL: ts.URL,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c := NewTextSearch(cfg)
	c.Client = ts.Client()
	return c
}

// --- Request construction ---

func TestTextSearchRequestParams(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		fmt.Fprint(w, `{"total":0,"results":[]}`)
	}))
	defer ts.Close()

	c := textSearchClient(ts, func(cfg *types.BackendConfig) {
		cfg.MaxResults = 15
		cfg.APIKey = "key-123"
	})
	if _, err := c.Call(context.Background(), "solid state batteries"); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if capturedReq.URL.Path != "/search" {
		t.Errorf("path = %q, want /search", capturedReq.URL.Path)
	}
	q := capturedReq.URL.Query()
	if got := q.Get("q"); got != "solid state batteries" {
		t.Errorf("q param = %q", got)
	}
	if got := q.Get("limit"); got != "15" {
		t.Errorf("limit param = %q, want 15", got)
	}
	if got := capturedReq.Header.Get("Authorization"); got != "Bearer key-123" {
		t.Errorf("Authorization = %q, want Bearer key-123", got)
	}
}

func TestTextSearchDefaultMaxResults(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		fmt.Fprint(w, `{"total":0,"results":[]}`)
	}))
	defer ts.Close()

	c := textSearchClient(ts, nil)
	if _, err := c.Call(context.Background(), "test"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := capturedReq.URL.Query().Get("limit"); got != "20" {
		t.Errorf("limit param = %q, want 20 (default)", got)
	}
}

// --- Response mapping ---

func TestTextSearchResultMapping(t *testing.T) {
	resp := `{"total":2,"results":[
		{"id":"doc-1","snippet":"First snippet","score":0.9},
		{"id":"doc-2","snippet":"Second snippet","score":0.4}]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, resp)
	}))
	defer ts.Close()

	c := textSearchClient(ts, nil)
	items, err := c.Call(context.Background(), "test")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID != "doc-1" || items[0].Content != "First snippet" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].Confidence != 0.9 {
		t.Errorf("items[0].Confidence = %f, want 0.9", items[0].Confidence)
	}
	if items[0].Source != "textsearch" {
		t.Errorf("Source = %q, want textsearch", items[0].Source)
	}
}

func TestTextSearchPositionFallbackScoring(t *testing.T) {
	// Service reports no scores; positions supply confidence.
	var results []string
	for i := 0; i < 5; i++ {
		results = append(results, fmt.Sprintf(`{"id":"d%d","snippet":"S%d"}`, i, i))
	}
	resp := fmt.Sprintf(`{"total":5,"results":[%s]}`, strings.Join(results, ","))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, resp)
	}))
	defer ts.Close()

	c := textSearchClient(ts, nil)
	items, err := c.Call(context.Background(), "test")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if math.Abs(items[0].Confidence-1.0) > 0.001 {
		t.Errorf("items[0].Confidence = %f, want 1.0", items[0].Confidence)
	}
	if math.Abs(items[4].Confidence-0.1) > 0.001 {
		t.Errorf("items[4].Confidence = %f, want 0.1", items[4].Confidence)
	}
}

// --- Error cases ---

func TestTextSearchHTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantKind types.FailureKind
	}{
		{"429 rate limit", http.StatusTooManyRequests, types.FailureRateLimited},
		{"500 server error", http.StatusInternalServerError, types.FailureUnavailable},
		{"422 validation", http.StatusUnprocessableEntity, types.FailureValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer ts.Close()

			c := textSearchClient(ts, nil)
			_, err := c.Call(context.Background(), "test")
			if err == nil {
				t.Fatal("expected error")
			}
			var be *Error
			if !errors.As(err, &be) {
				t.Fatalf("error %T is not *Error", err)
			}
			if be.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", be.Kind, tt.wantKind)
			}
			if be.Backend != "textsearch" {
				t.Errorf("Backend = %q, want textsearch", be.Backend)
			}
		})
	}
}

func TestTextSearchMalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{invalid json`)
	}))
	defer ts.Close()

	c := textSearchClient(ts, nil)
	_, err := c.Call(context.Background(), "test")
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if KindOf(err) != types.FailureServiceError {
		t.Errorf("kind = %q, want service_error", KindOf(err))
	}
	if !strings.Contains(err.Error(), "parsing") {
		t.Errorf("error = %q, want substring 'parsing'", err.Error())
	}
}

func TestTextSearchConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close() // Nothing listening.

	c := textSearchClient(ts, nil)
	c.Client = http.DefaultClient
	_, err := c.Call(context.Background(), "test")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != types.FailureConnection {
		t.Errorf("kind = %q, want connection", KindOf(err))
	}
	if !Transient(err) {
		t.Error("connection failure should be transient")
	}
}
