package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GenLoc-2025/GenLoc/internal/config"
	"github.com/GenLoc-2025/GenLoc/internal/llm"
	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/observability"
	"github.com/GenLoc-2025/GenLoc/internal/tools"
	"github.com/GenLoc-2025/GenLoc/internal/trace"
)

// Run outcomes reported to metrics.
const (
	OutcomeRanked          = "ranked"
	OutcomeInvalidReport   = "invalid_report"
	OutcomeBackendError    = "backend_error"
	OutcomeBudgetExhausted = "budget_exhausted"
)

// Agent drives the bounded tool-calling loop that turns a bug report into a
// file ranking. An Agent holds no per-run state and may serve concurrent runs.
type Agent struct {
	registry *llm.Registry
	cfg      config.LocalizerConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option customises an Agent.
type Option func(*Agent)

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = logging.OrNop(l) }
}

// WithMetrics enables Prometheus accounting.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// New creates a new Agent.
func New(registry *llm.Registry, cfg config.LocalizerConfig, opts ...Option) *Agent {
	a := &Agent{registry: registry, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxIterations returns the configured call budget.
func (a *Agent) MaxIterations() int {
	if a.cfg.MaxIterations > 0 {
		return a.cfg.MaxIterations
	}
	return DefaultMaxIterations
}

// RankFiles runs the loop to completion. It returns a complete ranking or an
// error: ErrInvalidBugReport, *BackendError, or ErrBudgetExhausted.
func (a *Agent) RankFiles(ctx context.Context, req Request) (Response, error) {
	started := time.Now()
	runID := uuid.NewString()

	if err := req.Report.validate(); err != nil {
		a.metrics.RecordRun(OutcomeInvalidReport, time.Since(started), 0, 0, 0)
		return Response{}, err
	}
	if req.Tools == nil {
		return Response{}, errors.New("tool dispatcher is required")
	}
	recorder := req.Trace
	if recorder == nil {
		recorder = trace.Nop{}
	}

	log := a.logger.With(
		zap.String("run_id", runID),
		zap.String("project", req.Report.Project()),
		zap.String("bug_id", req.Report.BugID()),
	)

	model := req.Model
	if model == "" {
		model = a.cfg.Model
	}
	if a.registry == nil {
		return Response{}, a.fail(log, started, 0, llm.Usage{}, &BackendError{Iteration: 0, Err: errors.New("model registry unavailable")})
	}
	provider, route, err := a.registry.Resolve(model)
	if err != nil {
		return Response{}, a.fail(log, started, 0, llm.Usage{}, &BackendError{Iteration: 0, Err: fmt.Errorf("resolve model: %w", err)})
	}
	a.metrics.RecordModelUsage(route.Name)
	log = log.With(zap.String("model", route.Name))

	maxIter := a.MaxIterations()
	conv := NewConversation(
		llm.SystemMessage(buildSystemPrompt(maxIter)),
		llm.UserMessage(buildUserPrompt(req.Report)),
	)
	definitions := tools.Definitions()
	var usage llm.Usage

	for i := 0; i < maxIter; i++ {
		policy := PolicyFor(i, maxIter)
		if err := ctx.Err(); err != nil {
			return Response{}, a.fail(log, started, i, usage, &BackendError{Iteration: i, Err: err})
		}
		recorder.RecordStart(i)

		resp, err := provider.Chat(ctx, llm.ChatRequest{
			Model:          route.Model,
			Messages:       conv.Snapshot(),
			Tools:          definitions,
			ToolChoice:     policy,
			ResponseSchema: RankingResponseSchema(),
			MaxTokens:      pickMaxTokens(a.cfg.MaxTokens, route.MaxTokens),
			Temperature:    pickTemperature(a.cfg.Temperature, route.Temperature),
		})
		if err != nil {
			return Response{}, a.fail(log, started, i+1, usage, &BackendError{Iteration: i, Err: err})
		}
		usage = usage.Add(resp.Usage)

		reply, err := classifyReply(resp.Message)
		if err != nil {
			return Response{}, a.fail(log, started, i+1, usage, &BackendError{Iteration: i, Err: err})
		}

		switch r := reply.(type) {
		case toolCallBatch:
			if policy == llm.ToolChoiceNone {
				a.discard(log, recorder, i, policy, len(r.calls))
				continue
			}
			a.dispatchBatch(ctx, log, conv, recorder, i, r, req.Tools)

		case finalAnswer:
			if policy == llm.ToolChoiceRequired {
				a.discard(log, recorder, i, policy, 0)
				continue
			}
			recorder.RecordTerminal(trace.TerminalRecord{Index: i, Usage: usage})
			a.metrics.RecordRun(OutcomeRanked, time.Since(started), i+1, usage.PromptTokens, usage.CompletionTokens)
			log.Info("ranking produced",
				zap.Int("iterations", i+1),
				zap.Int("messages", conv.Len()),
				zap.Int("files", len(r.ranking.RankedList)),
				zap.Int("total_tokens", usage.TotalTokens),
			)
			log.Debug("final ranking", zap.Stringer("ranking", r.ranking))
			return Response{
				RunID:        runID,
				Ranking:      r.ranking,
				Iterations:   i + 1,
				Usage:        usage,
				Model:        route.Name,
				Conversation: conv.Snapshot(),
			}, nil
		}
	}

	return Response{}, a.fail(log, started, maxIter, usage, fmt.Errorf("%w after %d iterations", ErrBudgetExhausted, maxIter))
}

// dispatchBatch appends the assistant turn, answers every call in order and
// flushes the iteration record.
func (a *Agent) dispatchBatch(ctx context.Context, log *zap.Logger, conv *Conversation, recorder trace.Recorder, i int, batch toolCallBatch, dispatcher Dispatcher) {
	conv.Append(llm.AssistantMessage(batch.content, batch.calls))

	rec := trace.IterationRecord{Index: i}
	for _, call := range batch.calls {
		name := call.Function.Name
		result := dispatcher.Dispatch(ctx, name, call.Function.Arguments)
		conv.Append(llm.ToolMessage(call.ID, name, encodeResult(result)))

		rec.ToolCalls = append(rec.ToolCalls, trace.ToolCall{Name: name, Arguments: call.Function.Arguments})
		rec.ToolResponses = append(rec.ToolResponses, trace.ToolResponse{Name: name, Content: result})
		log.Debug("tool dispatched", zap.Int("iteration", i), zap.String("tool", name), zap.String("call_id", call.ID))
	}
	recorder.RecordIteration(rec)
}

// discard drops a reply that breaks the turn's tool-use policy. Nothing is
// appended to the conversation; the iteration still counts against the budget.
func (a *Agent) discard(log *zap.Logger, recorder trace.Recorder, i int, policy llm.ToolChoice, calls int) {
	a.metrics.RecordPolicyViolation()
	log.Warn("reply ignored tool-use policy",
		zap.Int("iteration", i),
		zap.String("policy", string(policy)),
		zap.Int("tool_calls", calls),
	)
	recorder.RecordIteration(trace.IterationRecord{Index: i})
}

func (a *Agent) fail(log *zap.Logger, started time.Time, iterations int, usage llm.Usage, err error) error {
	outcome := OutcomeBackendError
	if errors.Is(err, ErrBudgetExhausted) {
		outcome = OutcomeBudgetExhausted
	}
	a.metrics.RecordRun(outcome, time.Since(started), iterations, usage.PromptTokens, usage.CompletionTokens)
	log.Error("localization run failed", zap.String("outcome", outcome), zap.Int("iterations", iterations), zap.Error(err))
	return err
}

func encodeResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(tools.ErrorResult{Error: "encode result: " + err.Error()})
	}
	return string(b)
}

func pickTemperature(runTemp float64, routeTemp float64) float64 {
	if runTemp > 0 {
		return runTemp
	}
	if routeTemp > 0 {
		return routeTemp
	}
	return 0
}

func pickMaxTokens(runMax int, routeMax int) int {
	if runMax > 0 {
		return runMax
	}
	if routeMax > 0 {
		return routeMax
	}
	return 0
}

// String renders the ranking as indented JSON.
func (r RankingResult) String() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return strings.Join(r.Files(), "\n")
	}
	return string(b)
}
