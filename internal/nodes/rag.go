package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

const sourcePreviewLen = 200

// newRAGNode builds the rag capability. Params:
//   - query: query template with {key} placeholders; when absent the node
//     reads the "query" key from its input
//   - k: number of documents to retrieve, default 5
//
// The output is {"documents": [contents], "sources": [{content, metadata,
// score}]} with source content previews truncated.
func newRAGNode(retriever collab.Retriever) Factory {
	return func(cfg *schema.NodeConfig) (Node, error) {
		if retriever == nil {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"rag node requires a configured retriever")
		}

		queryTemplate, err := stringParam(cfg.Params, "query", "")
		if err != nil {
			return nil, err
		}
		topK, err := intParam(cfg.Params, "k", 5)
		if err != nil {
			return nil, err
		}

		return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			query, err := resolveQuery(queryTemplate, input)
			if err != nil {
				return nil, err
			}

			docs, err := retriever.Retrieve(ctx, query, topK)
			if err != nil {
				return nil, err
			}

			documents := make([]any, 0, len(docs))
			sources := make([]any, 0, len(docs))
			for _, doc := range docs {
				documents = append(documents, doc.Content)

				preview := doc.Content
				if len(preview) > sourcePreviewLen {
					preview = preview[:sourcePreviewLen] + "..."
				}
				sources = append(sources, map[string]any{
					"content":  preview,
					"metadata": doc.Metadata,
					"score":    doc.Score,
				})
			}

			return map[string]any{
				"documents": documents,
				"sources":   sources,
			}, nil
		}), nil
	}
}

// resolveQuery renders the configured query template, falling back to the
// input's "query" key when no template is set.
func resolveQuery(template string, input map[string]any) (string, error) {
	if template != "" {
		return expressions.Format(template, templateData(input))
	}

	v, ok := input["query"]
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation,
			"no query param and no query key in input")
	}
	s, ok := v.(string)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"input query must be a string, got %T", v)
	}
	return s, nil
}
