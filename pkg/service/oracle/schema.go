package oracle

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// distributionSchema describes {"scores":[{"label":..., "score":...}]} with the
// labels of set as an enum.
func distributionSchema(set *model.LabelSet) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"scores": {
				Type:        "array",
				Description: "probability of every label, summing to 1",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"label": {Type: "string", Enum: labelEnum(set)},
						"score": {Type: "number", Description: "probability between 0 and 1"},
					},
					Required: []string{"label", "score"},
				},
			},
		},
		Required: []string{"scores"},
	}
}

// labelSchema describes {"<field>": label, "confidence": number}
func labelSchema(field string, set *model.LabelSet) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			field:        {Type: "string", Enum: labelEnum(set)},
			"confidence": {Type: "number", Description: "confidence between 0 and 1"},
		},
		Required: []string{field, "confidence"},
	}
}

func labelEnum(set *model.LabelSet) []any {
	names := set.Names()
	enum := make([]any, len(names))
	for i, n := range names {
		enum[i] = n
	}
	return enum
}

// toGenaiSchema converts JSON Schema to a Gemini response schema
func toGenaiSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{Description: schema.Description}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
	}

	for _, v := range schema.Enum {
		s, ok := v.(string)
		if !ok {
			return nil, goerr.New("enum value must be a string", goerr.V("value", v))
		}
		out.Enum = append(out.Enum, s)
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := toGenaiSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}
	out.Required = schema.Required

	if schema.Items != nil {
		converted, err := toGenaiSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
