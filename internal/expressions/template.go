package expressions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// Format substitutes {key} placeholders in template with values from data.
// Doubled braces escape literals: {{ renders as { and }} renders as }.
// A placeholder naming a key absent from data is an error, as is an
// unbalanced brace.
//
// LLM prompt templates and transform template mode both use this syntax.
func Format(template string, data map[string]any) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	i := 0
	for i < len(template) {
		c := template[i]

		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				out.WriteByte('{')
				i += 2
				continue
			}

			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", schema.NewErrorf(schema.ErrCodeValidation,
					"unclosed placeholder in template at offset %d", i).
					WithDetails(map[string]any{"template": template})
			}

			key := template[i+1 : i+1+end]
			val, ok := data[key]
			if !ok {
				return "", schema.NewErrorf(schema.ErrCodeValidation,
					"template references missing key %q", key).
					WithDetails(map[string]any{"template": template, "key": key})
			}

			out.WriteString(stringify(val))
			i += end + 2

		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				out.WriteByte('}')
				i += 2
				continue
			}
			return "", schema.NewErrorf(schema.ErrCodeValidation,
				"unmatched '}' in template at offset %d", i).
				WithDetails(map[string]any{"template": template})

		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), nil
}

// stringify renders a substituted value. Strings pass through unquoted;
// composite values are rendered as compact JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
