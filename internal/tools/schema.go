package tools

import "encoding/json"

type property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type field struct {
	name string
	property
}

func str(name, desc string) field {
	return field{name: name, property: property{Type: "string", Description: desc}}
}

func integer(name, desc string) field {
	return field{name: name, property: property{Type: "integer", Description: desc}}
}

// userInfoFields are accepted by every tool that may learn about the hire.
func userInfoFields() []field {
	return []field{
		str("company", "Target company name"),
		str("role", "Target role/position"),
		str("industry", "Industry context"),
		str("experience_level", "Required experience level"),
		str("additional_context", "Any additional context for personalization"),
	}
}

func objectSchema(fields []field, required ...string) string {
	props := make(map[string]property, len(fields))
	for _, f := range fields {
		props[f.name] = f.property
	}
	if required == nil {
		required = []string{}
	}
	data, err := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}
