package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// newSearchNode builds the search capability. Params:
//   - query: query template with {key} placeholders; when absent the node
//     reads the "query" key from its input
//   - count: result cap, default 5
//
// The output is {"results": [{title, url, snippet}]}.
func newSearchNode(searcher collab.Searcher) Factory {
	return func(cfg *schema.NodeConfig) (Node, error) {
		if searcher == nil {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"search node requires a configured searcher")
		}

		queryTemplate, err := stringParam(cfg.Params, "query", "")
		if err != nil {
			return nil, err
		}
		maxResults, err := intParam(cfg.Params, "count", 5)
		if err != nil {
			return nil, err
		}

		return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			query, err := resolveQuery(queryTemplate, input)
			if err != nil {
				return nil, err
			}

			hits, err := searcher.Search(ctx, query, maxResults)
			if err != nil {
				return nil, err
			}

			results := make([]any, 0, len(hits))
			for _, hit := range hits {
				results = append(results, map[string]any{
					"title":   hit.Title,
					"url":     hit.URL,
					"snippet": hit.Snippet,
				})
			}
			return map[string]any{"results": results}, nil
		}), nil
	}
}
