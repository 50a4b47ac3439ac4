package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

// RankedFile is one entry of the final ranking.
type RankedFile struct {
	File          string `json:"file"`
	Justification string `json:"justification"`
}

// RankingResult is the structured final answer of a run.
type RankingResult struct {
	Analysis   string       `json:"analysis_of_the_bug_report"`
	RankedList []RankedFile `json:"ranked_list"`
}

// Files returns the ranked file names in order.
func (r RankingResult) Files() []string {
	out := make([]string, 0, len(r.RankedList))
	for _, f := range r.RankedList {
		out = append(out, f.File)
	}
	return out
}

const rankingSchemaName = "output_format"

// rankingSchema is sent as the response format and used to validate replies.
const rankingSchema = `{
  "type": "object",
  "properties": {
    "analysis_of_the_bug_report": {
      "type": "string",
      "description": "Detailed analysis of the bug summary and description, including extracted keywords, error messages, affected components, and any referenced methods or functionality that help narrow down relevant files."
    },
    "ranked_list": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "file": {
            "type": "string",
            "description": "The fully qualified file name, exactly as it appears in the codebase (case and structure preserved)."
          },
          "justification": {
            "type": "string",
            "description": "Explanation of why the file is relevant to the bug report, including any matching keywords, inferred functionality, method signature matches, and analysis of method body logic."
          }
        },
        "required": ["file", "justification"],
        "additionalProperties": false
      }
    }
  },
  "required": ["analysis_of_the_bug_report", "ranked_list"],
  "additionalProperties": false
}`

var compiledRankingSchema = compileRankingSchema()

func compileRankingSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(rankingSchema), &doc); err != nil {
		panic(fmt.Sprintf("ranking schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("ranking.json", doc); err != nil {
		panic(fmt.Sprintf("ranking schema: %v", err))
	}
	s, err := c.Compile("ranking.json")
	if err != nil {
		panic(fmt.Sprintf("ranking schema: %v", err))
	}
	return s
}

// RankingResponseSchema is the response constraint attached to every backend call.
func RankingResponseSchema() *llm.ResponseSchema {
	return &llm.ResponseSchema{
		Name:   rankingSchemaName,
		Schema: json.RawMessage(rankingSchema),
		Strict: true,
	}
}

// ParseRanking decodes content strictly: it must be a single JSON object
// matching the ranking schema, with no unknown fields and no blank file names.
func ParseRanking(content string) (RankingResult, error) {
	body := strings.TrimSpace(stripCodeFence(content))
	if body == "" {
		return RankingResult{}, fmt.Errorf("%w: empty content", ErrMalformedAnswer)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return RankingResult{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	if err := compiledRankingSchema.Validate(doc); err != nil {
		return RankingResult{}, fmt.Errorf("%w: %s", ErrMalformedAnswer, strings.ReplaceAll(err.Error(), "\n", " "))
	}

	var out RankingResult
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return RankingResult{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	for i, f := range out.RankedList {
		if strings.TrimSpace(f.File) == "" {
			return RankingResult{}, fmt.Errorf("%w: ranked_list[%d] has no file", ErrMalformedAnswer, i)
		}
	}
	if out.RankedList == nil {
		out.RankedList = []RankedFile{}
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json fence some backends add
// when they cannot enforce a response format natively.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(t[:nl]), "{") {
		t = t[nl+1:]
	}
	return t
}
