package localize

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/GenLoc-2025/GenLoc/internal/agent"
)

// Error kinds reported to clients.
const (
	KindInvalidReport   = "invalid_report"
	KindBackend         = "backend_error"
	KindBudgetExhausted = "budget_exhausted"
	KindInternal        = "internal"
)

type classification struct {
	kind   string
	status int
	code   connect.Code
}

func classify(err error) classification {
	var be *agent.BackendError
	switch {
	case errors.Is(err, agent.ErrInvalidBugReport):
		return classification{KindInvalidReport, http.StatusBadRequest, connect.CodeInvalidArgument}
	case errors.Is(err, agent.ErrBudgetExhausted):
		return classification{KindBudgetExhausted, http.StatusUnprocessableEntity, connect.CodeResourceExhausted}
	case errors.Is(err, context.Canceled):
		return classification{KindBackend, http.StatusBadGateway, connect.CodeCanceled}
	case errors.As(err, &be):
		return classification{KindBackend, http.StatusBadGateway, connect.CodeUnavailable}
	default:
		return classification{KindInternal, http.StatusInternalServerError, connect.CodeInternal}
	}
}
