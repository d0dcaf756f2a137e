// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// VectorClient queries a vector similarity service: POST /v1/search with the
// query text returns scored items.
type VectorClient struct {
	Client *http.Client
	Config types.BackendConfig
}

// NewVector builds a vector similarity client.
func NewVector(cfg types.BackendConfig) *VectorClient {
	return &VectorClient{
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
	}
}

// Name returns the backend identifier.
func (c *VectorClient) Name() string { return c.Config.Name }

// Call issues one similarity search. The service embeds the query text
// itself; the orchestrator never handles raw vectors.
func (c *VectorClient) Call(ctx context.Context, query string) ([]types.ResultItem, error) {
	topK := c.Config.MaxResults
	if topK <= 0 {
		topK = 20
	}

	body, err := json.Marshal(vectorRequest{Text: query, TopK: topK})
	if err != nil {
		return nil, NewError(c.Name(), types.FailureBadRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.BaseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, NewError(c.Name(), types.FailureBadRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
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

	var vr vectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, NewError(c.Name(), types.FailureServiceError, fmt.Errorf("parsing response: %w", err))
	}

	items := make([]types.ResultItem, 0, len(vr.Items))
	for _, it := range vr.Items {
		items = append(items, types.ResultItem{
			ID:         it.ID,
			Content:    it.Content,
			Confidence: it.Score,
			Source:     c.Name(),
		})
	}
	return items, nil
}

// Vector service JSON structures.
type vectorRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

type vectorResponse struct {
	Items []vectorItem `json:"items"`
}

type vectorItem struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
