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

// GraphClient queries a graph relationship service: GET /traverse returns
// entities related to the query entity up to a configured depth.
type GraphClient struct {
	Client *http.Client
	Config types.BackendConfig
}

// NewGraph builds a graph traversal client.
func NewGraph(cfg types.BackendConfig) *GraphClient {
	return &GraphClient{
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
	}
}

// Name returns the backend identifier.
func (c *GraphClient) Name() string { return c.Config.Name }

// Call issues one traversal. The service resolves the query text to an
// entity itself; traversal weight becomes item confidence, falling back to
// position when the service reports none.
func (c *GraphClient) Call(ctx context.Context, query string) ([]types.ResultItem, error) {
	depth := c.Config.TraversalDepth
	if depth <= 0 {
		depth = 2
	}

	params := url.Values{
		"entity": {query},
		"depth":  {fmt.Sprintf("%d", depth)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Config.BaseURL+"/traverse?"+params.Encode(), nil)
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

	var gr graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, NewError(c.Name(), types.FailureServiceError, fmt.Errorf("parsing response: %w", err))
	}

	items := make([]types.ResultItem, 0, len(gr.Entities))
	for i, e := range gr.Entities {
		content := e.Label
		if e.Relation != "" {
			content = e.Label + " (" + e.Relation + ")"
		}
		score := e.Weight
		if score <= 0 {
			score = positionConfidence(i, len(gr.Entities))
		}
		items = append(items, types.ResultItem{
			ID:         e.ID,
			Content:    content,
			Confidence: score,
			Source:     c.Name(),
		})
	}
	return items, nil
}

// Graph service JSON structures.
type graphResponse struct {
	Entities []graphEntity `json:"entities"`
}

type graphEntity struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}
