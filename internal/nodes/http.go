package nodes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

const (
	httpNodeTimeout     = 30 * time.Second
	httpNodeMaxBodySize = 10 << 20
)

// newHTTPNode builds the http capability. Params:
//   - url:     request URL, templated with {key} placeholders
//   - method:  HTTP method, default GET
//   - headers: optional map of header name to value
//   - body:    optional request body; strings are templated, objects are
//     sent as JSON
//
// The output is {"status_code": N, "data": parsed body}. Response bodies
// that parse as JSON are returned structured, anything else as a string.
// Any HTTP status counts as node success; only transport failures fail
// the node.
func newHTTPNode() Factory {
	client := &http.Client{Timeout: httpNodeTimeout}

	return func(cfg *schema.NodeConfig) (Node, error) {
		rawURL, err := stringParam(cfg.Params, "url", "")
		if err != nil {
			return nil, err
		}
		if rawURL == "" {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"http node requires a url param")
		}

		method, err := stringParam(cfg.Params, "method", http.MethodGet)
		if err != nil {
			return nil, err
		}
		method = strings.ToUpper(method)

		headers, err := mapParam(cfg.Params, "headers")
		if err != nil {
			return nil, err
		}

		body := cfg.Params["body"]

		return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			url, err := expressions.Format(rawURL, templateData(input))
			if err != nil {
				return nil, err
			}

			var reqBody io.Reader
			contentType := ""
			switch b := body.(type) {
			case nil:
			case string:
				rendered, err := expressions.Format(b, templateData(input))
				if err != nil {
					return nil, err
				}
				reqBody = strings.NewReader(rendered)
			default:
				encoded, err := json.Marshal(b)
				if err != nil {
					return nil, schema.NewErrorf(schema.ErrCodeValidation,
						"encode request body: %s", err.Error()).WithCause(err)
				}
				reqBody = strings.NewReader(string(encoded))
				contentType = "application/json"
			}

			req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"build request: %s", err.Error()).WithCause(err)
			}
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			for name, value := range headers {
				if s, ok := value.(string); ok {
					req.Header.Set(name, s)
				}
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"request failed: %s", err.Error()).WithCause(err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, httpNodeMaxBodySize))
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"read response: %s", err.Error()).WithCause(err)
			}

			var data any
			if err := json.Unmarshal(raw, &data); err != nil {
				data = string(raw)
			}

			return map[string]any{
				"status_code": resp.StatusCode,
				"data":        data,
			}, nil
		}), nil
	}
}
