package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GenLoc-2025/GenLoc/internal/config"
	"github.com/GenLoc-2025/GenLoc/internal/llm"
	llmmock "github.com/GenLoc-2025/GenLoc/internal/llm/mock"
	"github.com/GenLoc-2025/GenLoc/internal/observability"
	"github.com/GenLoc-2025/GenLoc/internal/tools"
	"github.com/GenLoc-2025/GenLoc/internal/trace"
)

const personRanking = `{"analysis_of_the_bug_report":"NPE in getName","ranked_list":[{"file":"src/main/java/com/example/Person.java","justification":"getName dereferences name"}]}`

type dispatchRecord struct {
	name string
	args string
}

type fakeTools struct {
	mu      sync.Mutex
	calls   []dispatchRecord
	results map[string]any
}

func (f *fakeTools) Dispatch(_ context.Context, name string, args json.RawMessage) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchRecord{name: name, args: string(args)})
	if r, ok := f.results[name]; ok {
		return r
	}
	return tools.ErrorResult{Error: "Unknown function: " + name}
}

type memRecorder struct {
	starts     []int
	iterations []trace.IterationRecord
	terminals  []trace.TerminalRecord
}

func (m *memRecorder) RecordStart(index int)                     { m.starts = append(m.starts, index) }
func (m *memRecorder) RecordIteration(rec trace.IterationRecord) { m.iterations = append(m.iterations, rec) }
func (m *memRecorder) RecordTerminal(rec trace.TerminalRecord)   { m.terminals = append(m.terminals, rec) }

func newTestAgent(t *testing.T, p llm.Provider, maxIter int, opts ...Option) *Agent {
	t.Helper()
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", p)
	reg.RegisterModel("default", llm.ModelRoute{Provider: "mock", Model: "m"}, true)
	return New(reg, config.LocalizerConfig{MaxIterations: maxIter}, opts...)
}

func personReport(t *testing.T) BugReport {
	t.Helper()
	r, err := NewBugReport("Lang", "7", "NPE in Person.getName", "Calling getName on a new Person throws NullPointerException")
	require.NoError(t, err)
	return r
}

func personTools() *fakeTools {
	return &fakeTools{results: map[string]any{
		tools.SearchFile: tools.FileMatches{Files: []string{"src/main/java/com/example/Person.java"}},
		tools.GetMethodSignatures: tools.MethodSignatures{
			File:       "src/main/java/com/example/Person.java",
			Signatures: []string{"public String getName()"},
		},
	}}
}

func TestRankFilesPersonScenario(t *testing.T) {
	script := llmmock.NewScript(
		llmmock.ToolCallReply(
			llmmock.Call("c1", tools.SearchFile, `{"filename":"Person.java"}`),
			llmmock.Call("c2", tools.GetMethodSignatures, `{"filename":"Person.java"}`),
		),
		llmmock.ContentReply(personRanking, llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}),
	)
	metrics := observability.NewMetrics()
	a := newTestAgent(t, script, 10, WithMetrics(metrics))
	ft := personTools()
	rec := &memRecorder{}

	resp, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: ft, Trace: rec})
	require.NoError(t, err)
	require.Equal(t, []string{"src/main/java/com/example/Person.java"}, resp.Ranking.Files())
	require.Equal(t, 2, resp.Iterations)
	require.Equal(t, 120, resp.Usage.TotalTokens)
	require.Equal(t, "default", resp.Model)
	require.NotEmpty(t, resp.RunID)

	require.Equal(t, []dispatchRecord{
		{name: tools.SearchFile, args: `{"filename":"Person.java"}`},
		{name: tools.GetMethodSignatures, args: `{"filename":"Person.java"}`},
	}, ft.calls)

	reqs := script.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, llm.ToolChoiceRequired, reqs[0].ToolChoice)
	require.Equal(t, llm.ToolChoiceAuto, reqs[1].ToolChoice)
	require.Len(t, reqs[0].Tools, len(tools.Catalog()))
	require.Equal(t, "output_format", reqs[0].ResponseSchema.Name)

	// system, user, assistant, two tool replies
	second := reqs[1].Messages
	require.Len(t, second, 5)
	require.Equal(t, llm.RoleSystem, second[0].Role)
	require.Equal(t, llm.RoleUser, second[1].Role)
	require.Contains(t, second[1].Content, "NPE in Person.getName")
	require.Equal(t, llm.RoleAssistant, second[2].Role)
	require.Equal(t, "c1", second[3].ToolCallID)
	require.Equal(t, "c2", second[4].ToolCallID)
	require.JSONEq(t, `{"files":["src/main/java/com/example/Person.java"]}`, second[3].Content)

	require.Len(t, resp.Conversation, 5)

	require.Equal(t, []int{0, 1}, rec.starts)
	require.Len(t, rec.iterations, 1)
	require.Equal(t, 0, rec.iterations[0].Index)
	require.Len(t, rec.iterations[0].ToolCalls, 2)
	require.Len(t, rec.iterations[0].ToolResponses, 2)
	require.Equal(t, []trace.TerminalRecord{{Index: 1, Usage: resp.Usage}}, rec.terminals)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues(OutcomeRanked)))
}

func TestRankFilesSaveScenario(t *testing.T) {
	const ranking = `{"analysis_of_the_bug_report":"save dereferences a null field","ranked_list":[{"file":"Person.java","justification":"declares save()"}]}`
	script := llmmock.NewScript(
		llmmock.ToolCallReply(llmmock.Call("call_save", tools.SearchMethod, `{"method_name":"save"}`)),
		llmmock.ContentReply(ranking, llm.Usage{}),
	)
	ft := &fakeTools{results: map[string]any{
		tools.SearchMethod: tools.FileMatches{Files: []string{"Person.java"}},
	}}
	report, err := NewBugReport("Lang", "1", "NullPointerException in save()", "Saving a Person throws NPE")
	require.NoError(t, err)

	resp, err := newTestAgent(t, script, 10).RankFiles(context.Background(), Request{Report: report, Tools: ft})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Iterations)
	require.Equal(t, RankingResult{
		Analysis:   "save dereferences a null field",
		RankedList: []RankedFile{{File: "Person.java", Justification: "declares save()"}},
	}, resp.Ranking)

	require.Equal(t, []dispatchRecord{{name: tools.SearchMethod, args: `{"method_name":"save"}`}}, ft.calls)
	require.Len(t, resp.Conversation, 4)
	require.Equal(t, "call_save", resp.Conversation[3].ToolCallID)
	require.JSONEq(t, `{"files":["Person.java"]}`, resp.Conversation[3].Content)
}

func TestRankFilesLogsFinalRanking(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	script := llmmock.NewScript(
		llmmock.ToolCallReply(llmmock.Call("c1", tools.SearchFile, `{"filename":"Person.java"}`)),
		llmmock.ContentReply(personRanking, llm.Usage{}),
	)
	a := newTestAgent(t, script, 10, WithLogger(zap.New(core)))

	_, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools()})
	require.NoError(t, err)

	produced := logs.FilterMessage("ranking produced").All()
	require.Len(t, produced, 1)
	require.Equal(t, int64(4), produced[0].ContextMap()["messages"])

	final := logs.FilterMessage("final ranking").All()
	require.Len(t, final, 1)
	require.Contains(t, final[0].ContextMap()["ranking"], `"file": "src/main/java/com/example/Person.java"`)
}

func TestRankFilesBudgetExhausted(t *testing.T) {
	const maxIter = 4
	var calls int
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		return llmmock.ToolCallReply(llmmock.Call("", tools.GetCandidateFilenames, `{}`)), nil
	}}
	metrics := observability.NewMetrics()
	a := newTestAgent(t, provider, maxIter, WithMetrics(metrics))
	rec := &memRecorder{}

	_, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools(), Trace: rec})
	require.ErrorIs(t, err, ErrBudgetExhausted)
	require.Equal(t, maxIter, calls)
	require.Len(t, rec.iterations, maxIter)
	require.Empty(t, rec.terminals)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues(OutcomeBudgetExhausted)))
	// the call at maxIter-2 came back with tools and was dropped
	require.Empty(t, rec.iterations[maxIter-2].ToolCalls)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PolicyOverrides))
}

func TestRankFilesDiscardsToolCallsUnderNonePolicy(t *testing.T) {
	var seen []llm.ChatRequest
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		seen = append(seen, req)
		i := len(seen) - 1
		switch {
		case i < 9:
			return llmmock.ToolCallReply(llmmock.Call("", tools.SearchFile, `{"filename":"Person.java"}`)), nil
		default:
			return llmmock.ContentReply(personRanking, llm.Usage{}), nil
		}
	}}
	a := newTestAgent(t, provider, 10)
	ft := personTools()
	rec := &memRecorder{}

	resp, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: ft, Trace: rec})
	require.NoError(t, err)
	require.Equal(t, 10, resp.Iterations)
	require.Equal(t, llm.ToolChoiceNone, seen[8].ToolChoice)
	require.Equal(t, llm.ToolChoiceAuto, seen[9].ToolChoice)

	// iteration 8 dispatched nothing and appended nothing
	require.Len(t, ft.calls, 8)
	require.Equal(t, len(seen[8].Messages), len(seen[9].Messages))
	require.Empty(t, rec.iterations[8].ToolCalls)
	require.Equal(t, 8, rec.iterations[8].Index)
}

func TestRankFilesNeverFinishesOnFirstCall(t *testing.T) {
	script := llmmock.NewScript(
		llmmock.ContentReply(personRanking, llm.Usage{TotalTokens: 5}),
		llmmock.ContentReply(personRanking, llm.Usage{TotalTokens: 7}),
	)
	a := newTestAgent(t, script, 10)
	rec := &memRecorder{}

	resp, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools(), Trace: rec})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Iterations)
	require.Equal(t, 12, resp.Usage.TotalTokens)
	require.Len(t, resp.Conversation, 2)
	require.Len(t, rec.iterations, 1)
	require.Empty(t, rec.iterations[0].ToolCalls)
	require.Equal(t, 1, rec.terminals[0].Index)
}

func TestRankFilesAssignsMissingCallIDs(t *testing.T) {
	script := llmmock.NewScript(
		llmmock.ToolCallReply(
			llmmock.Call("", tools.SearchFile, `{"filename":"A.java"}`),
			llmmock.Call("", tools.SearchFile, `{"filename":"B.java"}`),
		),
		llmmock.ContentReply(personRanking, llm.Usage{}),
	)
	a := newTestAgent(t, script, 10)

	resp, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools()})
	require.NoError(t, err)

	msgs := resp.Conversation
	calls := msgs[2].ToolCalls
	require.Len(t, calls, 2)
	require.NotEmpty(t, calls[0].ID)
	require.NotEqual(t, calls[0].ID, calls[1].ID)
	require.Equal(t, calls[0].ID, msgs[3].ToolCallID)
	require.Equal(t, calls[1].ID, msgs[4].ToolCallID)
}

func TestRankFilesReplayIsDeterministic(t *testing.T) {
	replies := []llm.ChatResponse{
		llmmock.ToolCallReply(llmmock.Call("c1", tools.SearchFile, `{"filename":"Person.java"}`)),
		llmmock.ToolCallReply(llmmock.Call("c2", tools.GetMethodSignatures, `{"filename":"Person.java"}`)),
		llmmock.ContentReply(personRanking, llm.Usage{TotalTokens: 3}),
	}
	run := func() (Response, []llm.ChatRequest) {
		script := llmmock.NewScript(replies...)
		a := newTestAgent(t, script, 10)
		resp, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools()})
		require.NoError(t, err)
		return resp, script.Requests()
	}

	first, firstReqs := run()
	second, secondReqs := run()
	require.Equal(t, first.Ranking, second.Ranking)
	require.Equal(t, first.Conversation, second.Conversation)
	require.Equal(t, firstReqs, secondReqs)
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRankFilesRejectsInvalidReport(t *testing.T) {
	_, err := NewBugReport("Lang", "7", "summary", "   ")
	require.ErrorIs(t, err, ErrInvalidBugReport)
	require.ErrorContains(t, err, "description")

	var calls int
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		return llm.ChatResponse{}, nil
	}}
	a := newTestAgent(t, provider, 10)

	_, err = a.RankFiles(context.Background(), Request{Report: BugReport{}, Tools: personTools()})
	require.ErrorIs(t, err, ErrInvalidBugReport)
	require.Zero(t, calls)
}

func TestRankFilesMalformedFinalAnswer(t *testing.T) {
	script := llmmock.NewScript(
		llmmock.ToolCallReply(llmmock.Call("c1", tools.GetCandidateFilenames, `{}`)),
		llmmock.ContentReply(`{"ranked_list":"nope"}`, llm.Usage{}),
	)
	a := newTestAgent(t, script, 10)

	_, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools()})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, 1, be.Iteration)
	require.ErrorIs(t, err, ErrMalformedAnswer)
}

func TestRankFilesBackendFailure(t *testing.T) {
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{}, errors.New("connection refused")
	}}
	metrics := observability.NewMetrics()
	a := newTestAgent(t, provider, 10, WithMetrics(metrics))

	_, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools()})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, 0, be.Iteration)
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues(OutcomeBackendError)))
}

func TestRankFilesTraceKeepsHeaderOfAbortedIteration(t *testing.T) {
	var calls int
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return llmmock.ToolCallReply(llmmock.Call("c1", tools.SearchFile, `{"filename":"Person.java"}`)), nil
		}
		return llm.ChatResponse{}, errors.New("rate limited")
	}}
	reg := trace.NewRegistry(t.TempDir())
	logger, err := reg.For("Lang", "7")
	require.NoError(t, err)

	_, err = newTestAgent(t, provider, 10).RankFiles(context.Background(), Request{Report: personReport(t), Tools: personTools(), Trace: logger})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, 1, be.Iteration)
	require.NoError(t, reg.Close())

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasSuffix(lines[0], " - Iteration 0"))
	require.Contains(t, lines[1], " - Function called: search_file, Arguments: ")
	require.Contains(t, lines[2], " - Function response for search_file: ")
	require.True(t, strings.HasSuffix(lines[3], " - Iteration 1"))
}

func TestRankFilesUnknownModel(t *testing.T) {
	a := newTestAgent(t, &llmmock.Provider{}, 10)
	_, err := a.RankFiles(context.Background(), Request{Report: personReport(t), Model: "missing", Tools: personTools()})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	require.ErrorContains(t, err, "missing")
}

func TestRankFilesRequiresTools(t *testing.T) {
	a := newTestAgent(t, &llmmock.Provider{}, 10)
	_, err := a.RankFiles(context.Background(), Request{Report: personReport(t)})
	require.Error(t, err)
}

func TestRankFilesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newTestAgent(t, &llmmock.Provider{}, 10)

	_, err := a.RankFiles(ctx, Request{Report: personReport(t), Tools: personTools()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPickHelpers(t *testing.T) {
	require.Equal(t, 0.3, pickTemperature(0.3, 0.7))
	require.Equal(t, 0.7, pickTemperature(0, 0.7))
	require.Equal(t, 0.0, pickTemperature(0, 0))
	require.Equal(t, 100, pickMaxTokens(100, 200))
	require.Equal(t, 200, pickMaxTokens(0, 200))
	require.Equal(t, 0, pickMaxTokens(0, 0))
}
