package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/observability"
)

// Adapter routes tool calls to a CodebaseService. Failures never escape as
// errors; they come back as ErrorResult so the model can correct itself.
type Adapter struct {
	svc     CodebaseService
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAdapter wires an adapter over svc. logger and metrics may be nil.
func NewAdapter(svc CodebaseService, logger *zap.Logger, metrics *observability.Metrics) *Adapter {
	return &Adapter{svc: svc, logger: logging.OrNop(logger), metrics: metrics}
}

// Dispatch executes a single tool call and returns a JSON-serializable result.
func (a *Adapter) Dispatch(ctx context.Context, name string, args json.RawMessage) any {
	call, err := ParseCall(name, args)
	if err != nil {
		if errors.Is(err, ErrUnknownTool) {
			a.metrics.RecordToolCall("unknown", "unknown_tool")
			a.logger.Warn("unknown tool requested", zap.String("tool", name))
			return ErrorResult{Error: fmt.Sprintf("Unknown function: %s", name)}
		}
		a.metrics.RecordToolCall(name, "invalid_arguments")
		a.logger.Warn("invalid tool arguments", zap.String("tool", name), zap.Error(err))
		return ErrorResult{Error: fmt.Sprintf("Invalid arguments for %s: %v", name, err)}
	}

	if a.svc == nil {
		a.metrics.RecordToolCall(name, "error")
		return ErrorResult{Error: fmt.Sprintf("%s failed: codebase service unavailable", name)}
	}

	result, err := a.invoke(ctx, call)
	if err != nil {
		a.metrics.RecordToolCall(name, "error")
		a.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		return ErrorResult{Error: fmt.Sprintf("%s failed: %v", name, err)}
	}
	a.metrics.RecordToolCall(name, "ok")
	return result
}

func (a *Adapter) invoke(ctx context.Context, call Call) (any, error) {
	switch c := call.(type) {
	case SearchFileCall:
		return a.svc.SearchFile(ctx, c.Filename)
	case SearchMethodCall:
		return a.svc.SearchMethod(ctx, c.MethodName)
	case CandidateFilenamesCall:
		return a.svc.CandidateFilenames(ctx)
	case MethodSignaturesCall:
		return a.svc.MethodSignatures(ctx, c.Filename)
	case MethodBodyCall:
		return a.svc.MethodBody(ctx, c.Filename, c.MethodSignature)
	default:
		return nil, fmt.Errorf("no handler for %T", call)
	}
}
