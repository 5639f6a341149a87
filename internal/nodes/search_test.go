package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

func TestSearchNode(t *testing.T) {
	reg, _, _, searcher := testRegistry()
	searcher.results = []collab.SearchResult{
		{Title: "Tides", URL: "https://example.org/t", Snippet: "about tides"},
	}

	node, err := reg.Resolve(nodeCfg("s", schema.NodeTypeSearch, map[string]any{
		"query": "{topic} news",
	}))
	require.NoError(t, err)

	out, err := node.Execute(context.Background(), map[string]any{"topic": "tides"})
	require.NoError(t, err)
	assert.Equal(t, "tides news", searcher.lastQuery)

	results := out.(map[string]any)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Tides", results[0].(map[string]any)["title"])
}

func TestSearchNodeQueryFromInput(t *testing.T) {
	reg, _, _, searcher := testRegistry()

	node, err := reg.Resolve(nodeCfg("s", schema.NodeTypeSearch, nil))
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), map[string]any{"query": "go generics"})
	require.NoError(t, err)
	assert.Equal(t, "go generics", searcher.lastQuery)
}

func TestLoopNodeSlice(t *testing.T) {
	reg, _, _, _ := testRegistry()

	node, err := reg.Resolve(nodeCfg("l", schema.NodeTypeLoop, nil))
	require.NoError(t, err)

	out, err := node.Execute(context.Background(), map[string]any{"items": []any{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"a", "b", "c"}, "count": 3}, out)
}

func TestLoopNodeWrapsScalar(t *testing.T) {
	reg, _, _, _ := testRegistry()

	node, err := reg.Resolve(nodeCfg("l", schema.NodeTypeLoop, map[string]any{"over": "value"}))
	require.NoError(t, err)

	out, err := node.Execute(context.Background(), map[string]any{"value": 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{7}, "count": 1}, out)
}

func TestLoopNodeMissingCollection(t *testing.T) {
	reg, _, _, _ := testRegistry()

	node, err := reg.Resolve(nodeCfg("l", schema.NodeTypeLoop, nil))
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), map[string]any{"other": 1})
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))
}
