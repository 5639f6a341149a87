// Package collab defines the external collaborators workflow nodes depend on:
// LLM completion, document retrieval, and web search. Implementations live
// alongside the interfaces; tests substitute in-memory stubs.
package collab

import "context"

// CompletionRequest describes a single LLM completion call.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer produces an LLM completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Document is a retrieved chunk with similarity metadata.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Retriever fetches the top-k most relevant documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search and returns ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}
