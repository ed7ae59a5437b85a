package llm

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// SchemaInstruction renders schema as the trailing prompt instruction used when a
// provider cannot enforce the schema server-side.
func SchemaInstruction(schema *jsonschema.Schema) string {
	if schema == nil {
		return ""
	}
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}
	return "Respond ONLY with a valid JSON object following this exact schema:\n" + string(b)
}

// toGenaiSchema converts a reflected JSON schema to the Gemini response schema.
// Only the subset Gemini accepts is carried over.
func toGenaiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}

	for _, v := range s.Enum {
		if str, ok := v.(string); ok {
			out.Enum = append(out.Enum, str)
		}
	}
	if len(out.Enum) > 0 {
		out.Format = "enum"
	}

	if s.Minimum != "" {
		if f, err := s.Minimum.Float64(); err == nil {
			out.Minimum = genai.Ptr(f)
		}
	}
	if s.Maximum != "" {
		if f, err := s.Maximum.Float64(); err == nil {
			out.Maximum = genai.Ptr(f)
		}
	}

	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}

	if s.Properties != nil && s.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = toGenaiSchema(pair.Value)
			out.PropertyOrdering = append(out.PropertyOrdering, pair.Key)
		}
	}

	return out
}

func genaiType(t string) genai.Type {
	switch strings.ToLower(t) {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
