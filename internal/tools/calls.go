package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrUnknownTool is returned when a call names a tool outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Call is a parsed tool invocation. One variant exists per catalog entry.
type Call interface {
	Tool() string
}

// SearchFileCall asks for files whose name matches a guess.
type SearchFileCall struct {
	Filename string `json:"filename"`
}

// SearchMethodCall asks for files declaring a method.
type SearchMethodCall struct {
	MethodName string `json:"method_name"`
}

// CandidateFilenamesCall asks for likely relevant files.
type CandidateFilenamesCall struct{}

// MethodSignaturesCall asks for the method signatures of a file.
type MethodSignaturesCall struct {
	Filename string `json:"filename"`
}

// MethodBodyCall asks for the body of one method.
type MethodBodyCall struct {
	Filename        string `json:"filename"`
	MethodSignature string `json:"method_signature"`
}

func (SearchFileCall) Tool() string         { return SearchFile }
func (SearchMethodCall) Tool() string       { return SearchMethod }
func (CandidateFilenamesCall) Tool() string { return GetCandidateFilenames }
func (MethodSignaturesCall) Tool() string   { return GetMethodSignatures }
func (MethodBodyCall) Tool() string         { return GetMethodBody }

var argumentSchemas = compileArgumentSchemas()

func compileArgumentSchemas() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(catalog))
	for _, spec := range catalog {
		var doc any
		if err := json.Unmarshal(spec.JSONSchema(), &doc); err != nil {
			panic(fmt.Sprintf("tool %s: unmarshal schema: %v", spec.Name, err))
		}
		c := jsonschema.NewCompiler()
		url := spec.Name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("tool %s: add schema resource: %v", spec.Name, err))
		}
		schema, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("tool %s: compile schema: %v", spec.Name, err))
		}
		out[spec.Name] = schema
	}
	return out
}

// ParseCall validates raw arguments against the tool's schema and decodes
// them into the matching Call variant. Undeclared and missing parameters are
// rejected here.
func ParseCall(name string, raw json.RawMessage) (Call, error) {
	schema, ok := argumentSchemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, errors.New(flattenValidationError(err))
	}

	var call Call
	switch name {
	case SearchFile:
		call = &SearchFileCall{}
	case SearchMethod:
		call = &SearchMethodCall{}
	case GetCandidateFilenames:
		return CandidateFilenamesCall{}, nil
	case GetMethodSignatures:
		call = &MethodSignaturesCall{}
	case GetMethodBody:
		call = &MethodBodyCall{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(call); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return deref(call), nil
}

func deref(c Call) Call {
	switch v := c.(type) {
	case *SearchFileCall:
		return *v
	case *SearchMethodCall:
		return *v
	case *MethodSignaturesCall:
		return *v
	case *MethodBodyCall:
		return *v
	default:
		return c
	}
}

func flattenValidationError(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	lines := strings.Split(verr.Error(), "\n")
	parts := make([]string, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		// first line only names the schema url
		if i == 0 && len(lines) > 1 {
			continue
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "; ")
}
