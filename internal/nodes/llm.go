package nodes

import (
	"context"
	"encoding/json"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// newLLMNode builds the llm capability. Params:
//   - prompt:      template with {key} placeholders, default "{input}"
//   - system:      optional system prompt
//   - model:       optional model override
//   - temperature: optional sampling temperature
//   - max_tokens:  optional completion cap
//
// The output is the raw completion text.
func newLLMNode(completer collab.Completer) Factory {
	return func(cfg *schema.NodeConfig) (Node, error) {
		if completer == nil {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"llm node requires a configured completer")
		}

		prompt, err := stringParam(cfg.Params, "prompt", "{input}")
		if err != nil {
			return nil, err
		}
		system, err := stringParam(cfg.Params, "system", "")
		if err != nil {
			return nil, err
		}
		model, err := stringParam(cfg.Params, "model", "")
		if err != nil {
			return nil, err
		}
		temperature, err := floatParam(cfg.Params, "temperature", 0)
		if err != nil {
			return nil, err
		}
		maxTokens, err := intParam(cfg.Params, "max_tokens", 0)
		if err != nil {
			return nil, err
		}

		return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			rendered, err := expressions.Format(prompt, templateData(input))
			if err != nil {
				return nil, err
			}

			return completer.Complete(ctx, collab.CompletionRequest{
				Model:       model,
				System:      system,
				Prompt:      rendered,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
		}), nil
	}
}

// templateData exposes the input map for {key} substitution, adding a
// synthetic "input" key holding the whole map as JSON so the default
// "{input}" prompt works for any shape.
func templateData(input map[string]any) map[string]any {
	data := make(map[string]any, len(input)+1)
	for k, v := range input {
		data[k] = v
	}
	if _, ok := data["input"]; !ok {
		if b, err := json.Marshal(input); err == nil {
			data["input"] = string(b)
		} else {
			data["input"] = ""
		}
	}
	return data
}
