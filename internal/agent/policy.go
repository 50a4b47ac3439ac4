package agent

import "github.com/GenLoc-2025/GenLoc/internal/llm"

// DefaultMaxIterations is the backend call budget of a run.
const DefaultMaxIterations = 10

// PolicyFor returns the tool-use policy of iteration i under a budget of
// maxIter calls. The first call must use a tool, the call at maxIter-2 must
// not, and the model decides otherwise. The first rule wins when both apply.
//
// The forced answer lands on the second-to-last call, not the last one.
func PolicyFor(i, maxIter int) llm.ToolChoice {
	switch {
	case i == 0:
		return llm.ToolChoiceRequired
	case i == maxIter-2:
		return llm.ToolChoiceNone
	default:
		return llm.ToolChoiceAuto
	}
}
