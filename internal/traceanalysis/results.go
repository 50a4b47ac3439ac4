package traceanalysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// BugResult pairs a produced ranking with the files the fix touched.
type BugResult struct {
	Suspicious []string
	Fixed      []string
}

// DefaultK is the cutoff used for hit counting.
const DefaultK = 10

// LoadResults reads a CSV with bug_id, suspicious_files and fixed_files
// columns. Suspicious files are separated by ';', ',' or whitespace. Fixed
// files are concatenated and split on their ".java" suffix.
func LoadResults(r io.Reader) (map[string]BugResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, want := range []string{"bug_id", "suspicious_files", "fixed_files"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("results csv: missing column %q", want)
		}
	}

	out := make(map[string]BugResult)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("results csv line %d: %w", line, err)
		}
		field := func(name string) string {
			if i := cols[name]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		id := strings.TrimSpace(field("bug_id"))
		if id == "" {
			continue
		}
		out[id] = BugResult{
			Suspicious: splitSuspicious(field("suspicious_files")),
			Fixed:      splitFixed(field("fixed_files")),
		}
	}
	return out, nil
}

func splitSuspicious(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// splitFixed keeps only complete ".java" names; a trailing fragment is dropped.
func splitFixed(s string) []string {
	parts := strings.Split(s, ".java")
	out := make([]string, 0, len(parts))
	for _, p := range parts[:len(parts)-1] {
		name := strings.TrimSpace(p + ".java")
		if name != ".java" {
			out = append(out, name)
		}
	}
	return out
}

// HitAtK counts distinct fixed files among the first k suspicious ones.
func HitAtK(suspicious, fixed []string, k int) int {
	if len(fixed) == 0 {
		return 0
	}
	if k > len(suspicious) {
		k = len(suspicious)
	}
	top := make(map[string]struct{}, k)
	for _, f := range suspicious[:k] {
		top[f] = struct{}{}
	}
	hits := 0
	seen := make(map[string]struct{}, len(fixed))
	for _, f := range fixed {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		if _, ok := top[f]; ok {
			hits++
		}
	}
	return hits
}

// Localized reports whether a bug has at least one fixed file in its top k.
func (b BugResult) Localized(k int) bool {
	return HitAtK(b.Suspicious, b.Fixed, k) > 0
}
