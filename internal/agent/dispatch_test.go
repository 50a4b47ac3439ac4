package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
	llmmock "github.com/GenLoc-2025/GenLoc/internal/llm/mock"
	"github.com/GenLoc-2025/GenLoc/internal/tools"
)

func TestDispatchOrderProperties(t *testing.T) {
	catalog := tools.Catalog()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 12
	properties := gopter.NewProperties(parameters)

	properties.Property("one tool reply per request, in request order, with matching ids", prop.ForAll(
		func(picks []int) bool {
			calls := make([]llm.ToolCall, len(picks))
			for i, p := range picks {
				calls[i] = llmmock.Call(fmt.Sprintf("c%d", i), catalog[p].Name, `{}`)
			}
			script := llmmock.NewScript(llmmock.ToolCallReply(calls...), llmmock.ContentReply(personRanking, llm.Usage{}))
			ft := &fakeTools{}

			resp, err := newTestAgent(t, script, 10).RankFiles(context.Background(), Request{Report: personReport(t), Tools: ft})
			if err != nil || len(ft.calls) != len(calls) {
				return false
			}
			replies := resp.Conversation[3:]
			if len(replies) != len(calls) {
				return false
			}
			for i, call := range calls {
				if ft.calls[i].name != call.Function.Name {
					return false
				}
				if replies[i].Role != llm.RoleTool || replies[i].ToolCallID != call.ID || replies[i].Name != call.Function.Name {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(catalog)-1)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}
