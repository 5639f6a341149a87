package nodes

import (
	"context"
	"fmt"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// stubCompleter echoes the prompt back, recording each request.
type stubCompleter struct {
	requests []collab.CompletionRequest
	reply    string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, req collab.CompletionRequest) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return req.Prompt, nil
}

type stubRetriever struct {
	lastQuery string
	lastTopK  int
	docs      []collab.Document
	err       error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, topK int) ([]collab.Document, error) {
	s.lastQuery = query
	s.lastTopK = topK
	return s.docs, s.err
}

type stubSearcher struct {
	lastQuery string
	results   []collab.SearchResult
	err       error
}

func (s *stubSearcher) Search(ctx context.Context, query string, maxResults int) ([]collab.SearchResult, error) {
	s.lastQuery = query
	return s.results, s.err
}

// testRegistry builds a registry with stub collaborators and live expression
// engines.
func testRegistry() (*Registry, *stubCompleter, *stubRetriever, *stubSearcher) {
	completer := &stubCompleter{}
	retriever := &stubRetriever{}
	searcher := &stubSearcher{}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		panic(fmt.Sprintf("cel engine: %v", err))
	}

	reg := NewRegistry(Deps{
		Completer: completer,
		Retriever: retriever,
		Searcher:  searcher,
		CEL:       cel,
		Expr:      expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
	})
	return reg, completer, retriever, searcher
}

func nodeCfg(id string, nodeType schema.NodeType, params map[string]any) *schema.NodeConfig {
	return &schema.NodeConfig{ID: id, Type: nodeType, Params: params}
}
