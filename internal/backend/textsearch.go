// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// TextSearchClient queries a keyword search service: GET /search returns
// ranked snippets.
type TextSearchClient struct {
	Client *http.Client
	Config types.BackendConfig
}

// NewTextSearch builds a text search client with an HTTP client bounded by
// the configured timeout.
func NewTextSearch(cfg types.BackendConfig) *TextSearchClient {
	return &TextSearchClient{
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
	}
}

// Name returns the backend identifier.
func (c *TextSearchClient) Name() string { return c.Config.Name }

// Call issues one search request. Errors are normalized into the shared
// taxonomy; the call is never retried here.
func (c *TextSearchClient) Call(ctx context.Context, query string) ([]types.ResultItem, error) {
	maxResults := c.Config.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"q":     {query},
		"limit": {fmt.Sprintf("%d", maxResults)},
	}
	reqURL := c.Config.BaseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, NewError(c.Name(), types.FailureBadRequest, err)
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)
	if c.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, NewError(c.Name(), classifyTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(c.Name(), resp.StatusCode)
	}

	var sr textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, NewError(c.Name(), types.FailureServiceError, fmt.Errorf("parsing response: %w", err))
	}

	items := make([]types.ResultItem, 0, len(sr.Results))
	for i, r := range sr.Results {
		score := r.Score
		if score <= 0 {
			score = positionConfidence(i, len(sr.Results))
		}
		items = append(items, types.ResultItem{
			ID:         r.ID,
			Content:    r.Snippet,
			Confidence: score,
			Source:     c.Name(),
		})
	}
	return items, nil
}

// Text search service JSON structures.
type textSearchResponse struct {
	Total   int                `json:"total"`
	Results []textSearchResult `json:"results"`
}

type textSearchResult struct {
	ID      string  `json:"id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}
