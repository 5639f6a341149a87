package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// HTTPRetriever implements Retriever against a vector store service exposing
// a POST /query endpoint that accepts {"query": ..., "k": ...} and returns
// {"documents": [{"content": ..., "metadata": ..., "score": ...}]}.
type HTTPRetriever struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRetriever creates a retriever for the service at baseURL.
func NewHTTPRetriever(baseURL string) *HTTPRetriever {
	return &HTTPRetriever{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Retrieve queries the service for the topK most relevant documents.
func (r *HTTPRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 5
	}

	payload, err := json.Marshal(map[string]any{"query": query, "k": topK})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"marshal retrieval request: %s", err.Error()).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"build retrieval request: %s", err.Error()).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"retrieval request failed: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"retrieval service returned status %d", resp.StatusCode)
	}

	var body struct {
		Documents []Document `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"decode retrieval response: %s", err.Error()).WithCause(err)
	}

	return body.Documents, nil
}

var _ Retriever = (*HTTPRetriever)(nil)
