package traceanalysis

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	logPrefix = "bug_"
	logSuffix = "_log.txt"
)

// BugIDFromFilename extracts the id of a bug_<id>_log.txt file.
func BugIDFromFilename(name string) (string, bool) {
	if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, logPrefix), logSuffix)
	return id, id != ""
}

// LoadTraces parses every trace file of a project directory concurrently.
func LoadTraces(ctx context.Context, dir string) (map[string][]Event, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read trace dir: %w", err)
	}

	var mu sync.Mutex
	out := make(map[string][]Event)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := BugIDFromFilename(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			events, err := ParseTrace(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			out[id] = events
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FunctionUsage lists the tools called per bug, in call order.
func FunctionUsage(traces map[string][]Event) map[string][]string {
	out := make(map[string][]string, len(traces))
	for id, events := range traces {
		out[id] = CalledFunctions(events)
	}
	return out
}

// AverageCalls is the mean number of tool calls per traced bug.
func AverageCalls(usage map[string][]string) float64 {
	if len(usage) == 0 {
		return 0
	}
	total := 0
	for _, fns := range usage {
		total += len(fns)
	}
	return float64(total) / float64(len(usage))
}

// FunctionContribution counts how often a tool was called in localized and
// missed bugs.
type FunctionContribution struct {
	Function string
	Success  int
	Failure  int
}

// Contribution tallies tool calls of traced bugs by localization outcome at
// DefaultK, sorted by success count then name.
func Contribution(results map[string]BugResult, usage map[string][]string) []FunctionContribution {
	counts := make(map[string]*FunctionContribution)
	for id, res := range results {
		fns, ok := usage[id]
		if !ok {
			continue
		}
		localized := res.Localized(DefaultK)
		for _, fn := range fns {
			c, ok := counts[fn]
			if !ok {
				c = &FunctionContribution{Function: fn}
				counts[fn] = c
			}
			if localized {
				c.Success++
			} else {
				c.Failure++
			}
		}
	}
	out := make([]FunctionContribution, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Success != out[j].Success {
			return out[i].Success > out[j].Success
		}
		return out[i].Function < out[j].Function
	})
	return out
}

// SuccessfulCall is a tool response that surfaced a fixed file of a localized bug.
type SuccessfulCall struct {
	BugID     string
	Function  string
	FixedFile string
	Iteration int
}

// SuccessfulCalls scans the responses of localized bugs. At most one fixed
// file is reported per response: the first, in fixed-file order, that the
// response mentions. Only JSON object or array responses are considered.
func SuccessfulCalls(results map[string]BugResult, traces map[string][]Event) []SuccessfulCall {
	var out []SuccessfulCall
	for id, events := range traces {
		res, ok := results[id]
		if !ok || len(res.Fixed) == 0 || !res.Localized(DefaultK) {
			continue
		}
		current := ""
		for _, e := range events {
			switch e.Kind {
			case EventCall:
				current = e.Function
			case EventResponse:
				if current == "" {
					continue
				}
				values, ok := responseStrings(e.Payload)
				if !ok {
					continue
				}
				for _, fixed := range res.Fixed {
					if mentions(values, fixed) {
						out = append(out, SuccessfulCall{BugID: id, Function: current, FixedFile: fixed, Iteration: e.Iteration})
						break
					}
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BugID != out[j].BugID {
			return out[i].BugID < out[j].BugID
		}
		return out[i].Iteration < out[j].Iteration
	})
	return out
}

// responseStrings collects every string leaf of a JSON object or array.
func responseStrings(payload string) ([]string, bool) {
	p := strings.TrimSpace(payload)
	if !strings.HasPrefix(p, "{") && !strings.HasPrefix(p, "[") {
		return nil, false
	}
	var doc any
	if err := json.Unmarshal([]byte(p), &doc); err != nil {
		return nil, false
	}
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []any:
			for _, x := range t {
				walk(x)
			}
		case map[string]any:
			for _, x := range t {
				walk(x)
			}
		}
	}
	walk(doc)
	return out, true
}

func mentions(values []string, fixed string) bool {
	for _, v := range values {
		if strings.Contains(v, fixed) {
			return true
		}
	}
	return false
}

// WriteSuccessfulCalls writes rows as CSV with a header.
func WriteSuccessfulCalls(w io.Writer, rows []SuccessfulCall) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bug_id", "function_call", "fixed_file", "iteration"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.BugID, r.Function, r.FixedFile, strconv.Itoa(r.Iteration)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
