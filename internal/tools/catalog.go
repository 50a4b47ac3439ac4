package tools

import (
	"encoding/json"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

// Tool names advertised to the model.
const (
	SearchFile            = "search_file"
	SearchMethod          = "search_method"
	GetCandidateFilenames = "get_candidate_filenames"
	GetMethodSignatures   = "get_method_signatures_of_a_file"
	GetMethodBody         = "get_method_body"
)

// ToolSpec describes an invocable codebase lookup.
type ToolSpec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  []Param `json:"parameters"`
}

// Param describes a single tool parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

var catalog = []ToolSpec{
	{
		Name:        SearchFile,
		Description: "Search for a Java file in the codebase using an inferred or guessed name. Returns the fully qualified filename if it exists.",
		Parameters: []Param{
			{Name: "filename", Type: "string", Description: "Inferred filename to search (e.g., Person.java)", Required: true},
		},
	},
	{
		Name:        SearchMethod,
		Description: "Search for a method across the codebase by its name. Returns the files where the method is found.",
		Parameters: []Param{
			{Name: "method_name", Type: "string", Description: "The name of the method to search for (e.g., updatePersonDetails)", Required: true},
		},
	},
	{
		Name:        GetCandidateFilenames,
		Description: "Retrieve 50 fully qualified filenames from the code base that might be relevant. Useful when filename inference is uncertain.",
		Parameters:  []Param{},
	},
	{
		Name:        GetMethodSignatures,
		Description: "Get all method signatures defined in a given Java file.",
		Parameters: []Param{
			{Name: "filename", Type: "string", Description: "Fully qualified name of the file to inspect.", Required: true},
		},
	},
	{
		Name:        GetMethodBody,
		Description: "Retrieve the body of a specified method from a Java file.",
		Parameters: []Param{
			{Name: "filename", Type: "string", Description: "Fully qualified name of the file that contains the method.", Required: true},
			{Name: "method_signature", Type: "string", Description: "The full signature of the method whose body should be returned.", Required: true},
		},
	},
}

// Catalog returns the ordered tool specs. Callers get a copy.
func Catalog() []ToolSpec {
	out := make([]ToolSpec, len(catalog))
	for i, s := range catalog {
		out[i] = s
		out[i].Parameters = append([]Param{}, s.Parameters...)
	}
	return out
}

// Lookup finds a tool spec by name.
func Lookup(name string) (ToolSpec, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	return ToolSpec{}, false
}

// JSONSchema renders the parameters as a closed JSON Schema object.
func (s ToolSpec) JSONSchema() json.RawMessage {
	props := make(map[string]any, len(s.Parameters))
	required := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	b, _ := json.Marshal(doc)
	return b
}

// Definitions renders the catalog as strict tool definitions for completion backends.
func Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(catalog))
	for _, s := range catalog {
		defs = append(defs, llm.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.JSONSchema(),
			Strict:      true,
		})
	}
	return defs
}
