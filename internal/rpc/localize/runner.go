// Package localize serves fault localization runs over HTTP and Connect.
package localize

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GenLoc-2025/GenLoc/internal/agent"
	"github.com/GenLoc-2025/GenLoc/internal/codebase"
	"github.com/GenLoc-2025/GenLoc/internal/config"
	"github.com/GenLoc-2025/GenLoc/internal/llm/configbuilder"
	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/observability"
	"github.com/GenLoc-2025/GenLoc/internal/rpc"
	"github.com/GenLoc-2025/GenLoc/internal/tools"
	"github.com/GenLoc-2025/GenLoc/internal/trace"
)

// Runner executes one localization request.
type Runner interface {
	Rank(ctx context.Context, req rpc.RankFilesRequest) (rpc.RankFilesResponse, error)
}

// LocalizerRunner bridges the agent loop to the codebase index and trace files.
type LocalizerRunner struct {
	Agent   *agent.Agent
	Index   *codebase.Index
	Traces  *trace.Registry
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Rank builds the report, binds the index to it, and runs the agent loop.
func (r *LocalizerRunner) Rank(ctx context.Context, req rpc.RankFilesRequest) (rpc.RankFilesResponse, error) {
	if r.Agent == nil {
		return rpc.RankFilesResponse{}, errors.New("agent unavailable")
	}
	report, err := agent.NewBugReport(req.Project, req.BugID, req.Summary, req.Description)
	if err != nil {
		return rpc.RankFilesResponse{}, err
	}

	var svc tools.CodebaseService
	if r.Index != nil {
		svc = r.Index.ForReport(report.Text())
	}
	dispatcher := tools.NewAdapter(svc, logging.OrNop(r.Logger), r.Metrics)

	var recorder trace.Recorder = trace.Nop{}
	tracePath := ""
	if r.Traces != nil {
		tl, err := r.Traces.For(report.Project(), report.BugID())
		if err != nil {
			return rpc.RankFilesResponse{}, fmt.Errorf("open trace log: %w", err)
		}
		recorder = tl
		tracePath = tl.Path()
		defer func() { _ = tl.Sync() }()
	}

	res, err := r.Agent.RankFiles(ctx, agent.Request{
		Report: report,
		Model:  req.Model,
		Tools:  dispatcher,
		Trace:  recorder,
	})
	if err != nil {
		return rpc.RankFilesResponse{}, err
	}

	out := ToResponse(report, res)
	out.TracePath = tracePath
	return out, nil
}

// ToResponse converts an agent response into its wire form.
func ToResponse(report agent.BugReport, res agent.Response) rpc.RankFilesResponse {
	list := make([]rpc.RankedFile, 0, len(res.Ranking.RankedList))
	for _, f := range res.Ranking.RankedList {
		list = append(list, rpc.RankedFile{File: f.File, Justification: f.Justification})
	}
	return rpc.RankFilesResponse{
		RunID:      res.RunID,
		Project:    report.Project(),
		BugID:      report.BugID(),
		Model:      res.Model,
		Analysis:   res.Ranking.Analysis,
		RankedList: list,
		Iterations: res.Iterations,
		Usage: rpc.Usage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			TotalTokens:      res.Usage.TotalTokens,
		},
	}
}

// NewLocalizerRunner wires providers, the agent loop, the codebase index and
// the trace registry from configuration. The index is built once, eagerly.
func NewLocalizerRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*LocalizerRunner, error) {
	logger = logging.OrNop(logger)
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	idx, err := codebase.Build(ctx, codebase.Options{
		Root:           cfg.Codebase.SourceRoot,
		Extensions:     cfg.Codebase.Extensions,
		MaxFiles:       cfg.Codebase.MaxFiles,
		MaxFileBytes:   cfg.Codebase.MaxFileBytes,
		Workers:        cfg.Codebase.Workers,
		CandidateLimit: cfg.Codebase.CandidateLimit,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build codebase index: %w", err)
	}

	return &LocalizerRunner{
		Agent:   agent.New(registry, cfg.Localizer, agent.WithLogger(logger), agent.WithMetrics(metrics)),
		Index:   idx,
		Traces:  trace.NewRegistry(cfg.Trace.Dir),
		Metrics: metrics,
		Logger:  logger,
	}, nil
}

// Close flushes and closes every trace file opened by the runner.
func (r *LocalizerRunner) Close() error {
	if r.Traces == nil {
		return nil
	}
	return r.Traces.Close()
}
