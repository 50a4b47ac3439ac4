// Package traceanalysis reads per-bug trace logs back and measures which
// tools contributed to successful localizations.
package traceanalysis

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// EventKind tells trace events apart.
type EventKind int

const (
	EventIteration EventKind = iota
	EventCall
	EventResponse
	EventUsage
)

// Event is one recognised trace line.
type Event struct {
	Kind      EventKind
	Iteration int
	Function  string
	// Payload holds call arguments, response content or the usage line.
	Payload string
}

var (
	iterationRe = regexp.MustCompile(`Iteration (\d+)`)
	callRe      = regexp.MustCompile(`Function called: (\w+)(?:, Arguments: (.*))?`)
	responseRe  = regexp.MustCompile(`Function response for (\w+): (.+)`)
	usageRe     = regexp.MustCompile(`API Usage: (.*)`)
)

const maxLineBytes = 16 << 20

// ParseTrace scans a trace log. Lines that match no known prefix are skipped,
// so files with interleaved diagnostics still parse. Events before the first
// iteration header carry iteration -1.
func ParseTrace(r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []Event
	iteration := -1
	for sc.Scan() {
		line := sc.Text()
		switch {
		case responseRe.MatchString(line):
			m := responseRe.FindStringSubmatch(line)
			events = append(events, Event{Kind: EventResponse, Iteration: iteration, Function: m[1], Payload: m[2]})
		case callRe.MatchString(line):
			m := callRe.FindStringSubmatch(line)
			events = append(events, Event{Kind: EventCall, Iteration: iteration, Function: m[1], Payload: m[2]})
		case usageRe.MatchString(line):
			m := usageRe.FindStringSubmatch(line)
			events = append(events, Event{Kind: EventUsage, Iteration: iteration, Payload: strings.TrimSpace(m[1])})
		case iterationRe.MatchString(line):
			m := iterationRe.FindStringSubmatch(line)
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("parse iteration %q: %w", m[1], err)
			}
			iteration = n
			events = append(events, Event{Kind: EventIteration, Iteration: n})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan trace: %w", err)
	}
	return events, nil
}

// CalledFunctions returns the tool names in call order.
func CalledFunctions(events []Event) []string {
	var out []string
	for _, e := range events {
		if e.Kind == EventCall {
			out = append(out, e.Function)
		}
	}
	return out
}
