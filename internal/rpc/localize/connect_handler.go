package localize

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/GenLoc-2025/GenLoc/internal/observability"
	"github.com/GenLoc-2025/GenLoc/internal/rpc"
	"github.com/GenLoc-2025/GenLoc/internal/rpc/connectjson"
)

const ConnectRankFilesProcedure = "/genloc.v1.LocalizerService/RankFiles"

// NewConnectHandler builds a Connect unary handler for RankFiles.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectRankHandler{runner: runner, metrics: metrics}
	return ConnectRankFilesProcedure, connect.NewUnaryHandler(ConnectRankFilesProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRankHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectRankHandler) handle(ctx context.Context, req *connect.Request[rpc.RankFilesRequest]) (*connect.Response[rpc.RankFilesResponse], error) {
	if req.Msg == nil {
		h.metrics.RecordTransportError("connect", "missing_request")
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("empty request"))
	}
	resp, err := h.runner.Rank(ctx, *req.Msg)
	if err != nil {
		c := classify(err)
		h.metrics.RecordTransportError("connect", c.kind)
		return nil, connect.NewError(c.code, err)
	}
	return connect.NewResponse(&resp), nil
}

// NewClient returns a Connect client for a daemon at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string) *connect.Client[rpc.RankFilesRequest, rpc.RankFilesResponse] {
	return connect.NewClient[rpc.RankFilesRequest, rpc.RankFilesResponse](
		httpClient,
		baseURL+ConnectRankFilesProcedure,
		connect.WithCodec(connectjson.Codec{}),
	)
}
