package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/GenLoc-2025/GenLoc/internal/observability"
)

type recordedCall struct {
	op   string
	args []string
}

type fakeService struct {
	calls []recordedCall
	err   error
}

func (f *fakeService) record(op string, args ...string) {
	f.calls = append(f.calls, recordedCall{op: op, args: args})
}

func (f *fakeService) SearchFile(_ context.Context, filename string) (FileMatches, error) {
	f.record("SearchFile", filename)
	if f.err != nil {
		return FileMatches{}, f.err
	}
	return FileMatches{Files: []string{"src/main/java/org/example/Person.java"}}, nil
}

func (f *fakeService) SearchMethod(_ context.Context, methodName string) (FileMatches, error) {
	f.record("SearchMethod", methodName)
	return FileMatches{Files: []string{"Person.java"}}, f.err
}

func (f *fakeService) CandidateFilenames(_ context.Context) (FileMatches, error) {
	f.record("CandidateFilenames")
	return FileMatches{Files: []string{"A.java", "B.java"}}, f.err
}

func (f *fakeService) MethodSignatures(_ context.Context, filename string) (MethodSignatures, error) {
	f.record("MethodSignatures", filename)
	return MethodSignatures{File: filename, Signatures: []string{"public void save()"}}, f.err
}

func (f *fakeService) MethodBody(_ context.Context, filename, signature string) (MethodBody, error) {
	f.record("MethodBody", filename, signature)
	return MethodBody{File: filename, Signature: signature, Body: "{ }"}, f.err
}

func TestDispatchRoutesSearchFile(t *testing.T) {
	svc := &fakeService{}
	a := NewAdapter(svc, nil, nil)

	got := a.Dispatch(context.Background(), "search_file", json.RawMessage(`{"filename":"Person.java"}`))

	require.Equal(t, []recordedCall{{op: "SearchFile", args: []string{"Person.java"}}}, svc.calls)
	require.Equal(t, FileMatches{Files: []string{"src/main/java/org/example/Person.java"}}, got)
}

func TestDispatchRoutesEveryTool(t *testing.T) {
	svc := &fakeService{}
	a := NewAdapter(svc, nil, nil)
	ctx := context.Background()

	a.Dispatch(ctx, SearchMethod, json.RawMessage(`{"method_name":"save"}`))
	a.Dispatch(ctx, GetCandidateFilenames, json.RawMessage(`{}`))
	a.Dispatch(ctx, GetMethodSignatures, json.RawMessage(`{"filename":"A.java"}`))
	a.Dispatch(ctx, GetMethodBody, json.RawMessage(`{"filename":"A.java","method_signature":"void save()"}`))

	require.Equal(t, []recordedCall{
		{op: "SearchMethod", args: []string{"save"}},
		{op: "CandidateFilenames"},
		{op: "MethodSignatures", args: []string{"A.java"}},
		{op: "MethodBody", args: []string{"A.java", "void save()"}},
	}, svc.calls)
}

func TestDispatchUnknownFunction(t *testing.T) {
	svc := &fakeService{}
	a := NewAdapter(svc, nil, nil)

	got := a.Dispatch(context.Background(), "totally_unknown_fn", json.RawMessage(`{}`))

	require.Equal(t, ErrorResult{Error: "Unknown function: totally_unknown_fn"}, got)
	require.Empty(t, svc.calls)
	b, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{"error":"Unknown function: totally_unknown_fn"}`, string(b))
}

func TestDispatchInvalidArgumentsNeverReachService(t *testing.T) {
	svc := &fakeService{}
	a := NewAdapter(svc, nil, nil)

	got := a.Dispatch(context.Background(), SearchFile, json.RawMessage(`{"name":"Person.java"}`))

	res, ok := got.(ErrorResult)
	require.True(t, ok)
	require.Contains(t, res.Error, "Invalid arguments for search_file")
	require.Empty(t, svc.calls)
}

func TestDispatchServiceFailureBecomesResult(t *testing.T) {
	svc := &fakeService{err: errors.New("file not indexed")}
	metrics := observability.NewMetrics()
	a := NewAdapter(svc, nil, metrics)

	got := a.Dispatch(context.Background(), SearchFile, json.RawMessage(`{"filename":"Nope.java"}`))

	require.Equal(t, ErrorResult{Error: "search_file failed: file not indexed"}, got)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ToolCalls.WithLabelValues(SearchFile, "error")))
}

func TestDispatchWithoutService(t *testing.T) {
	a := NewAdapter(nil, nil, nil)
	got := a.Dispatch(context.Background(), GetCandidateFilenames, nil)
	res, ok := got.(ErrorResult)
	require.True(t, ok)
	require.Contains(t, res.Error, "unavailable")
}
