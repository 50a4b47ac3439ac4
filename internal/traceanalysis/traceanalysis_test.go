package traceanalysis

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTrace = `2025-03-01 10:00:00,001 - Iteration 0
2025-03-01 10:00:00,002 - Function called: search_file, Arguments: {"filename":"Person.java"}
2025-03-01 10:00:00,003 - Function response for search_file: {"files":["org/example/Person.java"]}
2025-03-01 10:00:00,004 - Function called: get_candidate_filenames, Arguments: {}
2025-03-01 10:00:00,005 - Function response for get_candidate_filenames: {"files":["org/example/Repository.java","org/example/Person.java"]}
2025-03-01 10:00:01,000 - Iteration 1
2025-03-01 10:00:01,001 - Function called: get_method_body, Arguments: {"filename":"Person.java","method_signature":"void save()"}
2025-03-01 10:00:01,002 - Function response for get_method_body: {"error":"get_method_body failed: file not found"}
2025-03-01 10:00:02,000 - Iteration 2
2025-03-01 10:00:02,001 - API Usage: prompt_tokens=10 completion_tokens=2 total_tokens=12
`

func TestParseTrace(t *testing.T) {
	events, err := ParseTrace(strings.NewReader(sampleTrace))
	require.NoError(t, err)
	require.Len(t, events, 10)

	require.Equal(t, Event{Kind: EventIteration, Iteration: 0}, events[0])
	require.Equal(t, Event{Kind: EventCall, Iteration: 0, Function: "search_file", Payload: `{"filename":"Person.java"}`}, events[1])
	require.Equal(t, EventResponse, events[2].Kind)
	require.Equal(t, 1, events[6].Iteration)
	require.Equal(t, Event{Kind: EventUsage, Iteration: 2, Payload: "prompt_tokens=10 completion_tokens=2 total_tokens=12"}, events[9])

	require.Equal(t, []string{"search_file", "get_candidate_filenames", "get_method_body"}, CalledFunctions(events))
}

func TestParseTraceSkipsNoise(t *testing.T) {
	events, err := ParseTrace(strings.NewReader("starting\nFunction called: search_method\n\n"))
	require.NoError(t, err)
	require.Equal(t, []Event{{Kind: EventCall, Iteration: -1, Function: "search_method"}}, events)
}

func TestLoadResults(t *testing.T) {
	csvData := "bug_id,suspicious_files,fixed_files\n" +
		"101,\"org/example/Person.java;org/example/Repository.java\",org/example/Person.java\n" +
		"102,org/example/Repository.java,org/a/A.java org/b/B.java\n" +
		",ignored,\n"

	results, err := LoadResults(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, []string{"org/example/Person.java", "org/example/Repository.java"}, results["101"].Suspicious)
	require.Equal(t, []string{"org/a/A.java", "org/b/B.java"}, results["102"].Fixed)
}

func TestLoadResultsMissingColumn(t *testing.T) {
	_, err := LoadResults(strings.NewReader("bug_id,fixed_files\n1,A.java\n"))
	require.ErrorContains(t, err, "suspicious_files")
}

func TestSplitFixedDropsTrailingFragment(t *testing.T) {
	require.Equal(t, []string{"A.java", "pkg/B.java"}, splitFixed("A.java pkg/B.java trailing"))
	require.Empty(t, splitFixed(""))
}

func TestHitAtK(t *testing.T) {
	suspicious := []string{"A.java", "B.java", "C.java"}
	require.Equal(t, 0, HitAtK(suspicious, nil, 10))
	require.Equal(t, 2, HitAtK(suspicious, []string{"C.java", "A.java", "A.java"}, 10))
	require.Equal(t, 1, HitAtK(suspicious, []string{"C.java", "A.java"}, 1))
	require.Equal(t, 0, HitAtK(suspicious, []string{"C.java"}, 2))
}

func writeTraces(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestAnalysisPipeline(t *testing.T) {
	dir := writeTraces(t, map[string]string{
		"bug_101_log.txt": sampleTrace,
		"bug_102_log.txt": "2025-03-01 10:00:00,001 - Iteration 0\n2025-03-01 10:00:00,002 - Function called: search_method, Arguments: {\"method_name\":\"x\"}\n",
		"notes.txt":       "Function called: search_file\n",
	})
	results := map[string]BugResult{
		"101": {Suspicious: []string{"org/example/Person.java"}, Fixed: []string{"org/example/Person.java"}},
		"102": {Suspicious: []string{"org/example/Other.java"}, Fixed: []string{"org/example/Person.java"}},
	}

	traces, err := LoadTraces(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, traces, 2)

	usage := FunctionUsage(traces)
	require.Equal(t, []string{"search_method"}, usage["102"])
	require.InDelta(t, 2.0, AverageCalls(usage), 1e-9)

	contrib := Contribution(results, usage)
	require.Equal(t, []FunctionContribution{
		{Function: "get_candidate_filenames", Success: 1},
		{Function: "get_method_body", Success: 1},
		{Function: "search_file", Success: 1},
		{Function: "search_method", Failure: 1},
	}, contrib)

	calls := SuccessfulCalls(results, traces)
	require.Equal(t, []SuccessfulCall{
		{BugID: "101", Function: "search_file", FixedFile: "org/example/Person.java", Iteration: 0},
		{BugID: "101", Function: "get_candidate_filenames", FixedFile: "org/example/Person.java", Iteration: 0},
	}, calls)

	var buf bytes.Buffer
	require.NoError(t, WriteSuccessfulCalls(&buf, calls))
	require.Equal(t, "bug_id,function_call,fixed_file,iteration\n"+
		"101,search_file,org/example/Person.java,0\n"+
		"101,get_candidate_filenames,org/example/Person.java,0\n", buf.String())
}

func TestBugIDFromFilename(t *testing.T) {
	id, ok := BugIDFromFilename("bug_4321_log.txt")
	require.True(t, ok)
	require.Equal(t, "4321", id)

	_, ok = BugIDFromFilename("bug__log.txt")
	require.False(t, ok)
	_, ok = BugIDFromFilename("summary.csv")
	require.False(t, ok)
}
