package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

const duckDuckGoEndpoint = "https://api.duckduckgo.com/"

// DuckDuckGoSearcher implements Searcher against the DuckDuckGo Instant
// Answer API. No API key required.
type DuckDuckGoSearcher struct {
	endpoint string
	client   *http.Client
}

// NewDuckDuckGoSearcher creates a searcher. endpoint may be empty to use the
// public API.
func NewDuckDuckGoSearcher(endpoint string) *DuckDuckGoSearcher {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	return &DuckDuckGoSearcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type ddgTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search queries the instant answer API. The abstract, when present, is the
// first result; related topics fill the rest up to maxResults.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"build search request: %s", err.Error()).WithCause(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"search request failed: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"search returned status %d", resp.StatusCode)
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"decode search response: %s", err.Error()).WithCause(err)
	}

	var results []SearchResult
	if body.AbstractText != "" {
		results = append(results, SearchResult{
			Title:   body.Heading,
			URL:     body.AbstractURL,
			Snippet: body.AbstractText,
		})
	}
	for _, topic := range body.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if topic.Text == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   topic.Text,
			URL:     topic.FirstURL,
			Snippet: topic.Text,
		})
	}

	return results, nil
}

var _ Searcher = (*DuckDuckGoSearcher)(nil)
