package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDuckGoSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go workflows", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		json.NewEncoder(w).Encode(map[string]any{
			"Heading":      "Workflow",
			"AbstractText": "A workflow is a sequence of steps.",
			"AbstractURL":  "https://example.org/workflow",
			"RelatedTopics": []map[string]any{
				{"Text": "Workflow engine", "FirstURL": "https://example.org/engine"},
				{"Text": ""},
				{"Text": "Orchestration", "FirstURL": "https://example.org/orch"},
			},
		})
	}))
	defer srv.Close()

	s := NewDuckDuckGoSearcher(srv.URL)
	results, err := s.Search(context.Background(), "go workflows", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Workflow", results[0].Title)
	assert.Equal(t, "A workflow is a sequence of steps.", results[0].Snippet)
	assert.Equal(t, "Workflow engine", results[1].Title)
}

func TestDuckDuckGoSearcherBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewDuckDuckGoSearcher(srv.URL)
	_, err := s.Search(context.Background(), "anything", 5)
	require.Error(t, err)
}

func TestHTTPRetriever(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ocean currents", req["query"])
		assert.Equal(t, float64(3), req["k"])

		json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"content": "doc one", "score": 0.91, "metadata": map[string]any{"filename": "a.md"}},
				{"content": "doc two", "score": 0.72},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL)
	docs, err := r.Retrieve(context.Background(), "ocean currents", 3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc one", docs[0].Content)
	assert.InDelta(t, 0.91, docs[0].Score, 1e-9)
	assert.Equal(t, "a.md", docs[0].Metadata["filename"])
}

func TestHTTPRetrieverDefaultTopK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(5), req["k"])
		json.NewEncoder(w).Encode(map[string]any{"documents": []any{}})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL)
	docs, err := r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
