package traceanalysis

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

// AccuracyLevel indexes the cutoffs reported in a results file.
type AccuracyLevel int

const (
	AccuracyAt1 AccuracyLevel = iota
	AccuracyAt5
	AccuracyAt10
	numAccuracyLevels
)

var accuracyHeader = []string{"Accuracy@1", "Accuracy@5", "Accuracy@10"}

// AccuracySections holds the sorted, distinct bug ids listed under each
// cutoff of one run.
type AccuracySections [numAccuracyLevels][]string

// ExtractAccuracySections reads a run's results file. Bug id lines start with
// a numeric token; the "accuracy@ 1" and "accuracy@ 5" summary lines close the
// @1 and @5 lists and "accuracy@ 10" ends the scan.
func ExtractAccuracySections(r io.Reader) (AccuracySections, error) {
	sets := newLevelSets()
	level := AccuracyAt1

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
scan:
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "accuracy@ 10"):
			break scan
		case strings.HasPrefix(line, "accuracy@ 5"):
			level = AccuracyAt10
			continue
		case strings.HasPrefix(line, "accuracy@ 1"):
			level = AccuracyAt5
			continue
		case strings.HasPrefix(line, "below 10 files!"):
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 && isDigits(fields[0]) {
			sets[level][fields[0]] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return AccuracySections{}, fmt.Errorf("scan results: %w", err)
	}
	return sets.sections(), nil
}

// CompareRuns returns, per level, the bug ids present in every run and the
// ids present in at least one.
func CompareRuns(runs []AccuracySections) (common, union AccuracySections) {
	if len(runs) == 0 {
		return common, union
	}
	for lvl := range numAccuracyLevels {
		counts := make(map[string]int)
		for _, run := range runs {
			for _, id := range run[lvl] {
				counts[id]++
			}
		}
		all := make([]string, 0, len(counts))
		var shared []string
		for id, n := range counts {
			all = append(all, id)
			if n == len(runs) {
				shared = append(shared, id)
			}
		}
		sort.Strings(all)
		sort.Strings(shared)
		common[lvl], union[lvl] = shared, all
	}
	return common, union
}

// WriteAccuracySections writes one column per level, padding the shorter
// columns with empty cells.
func WriteAccuracySections(w io.Writer, s AccuracySections) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(accuracyHeader); err != nil {
		return err
	}
	rows := 0
	for _, ids := range s {
		rows = max(rows, len(ids))
	}
	for i := range rows {
		row := make([]string, numAccuracyLevels)
		for lvl, ids := range s {
			if i < len(ids) {
				row[lvl] = ids[i]
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type levelSets [numAccuracyLevels]map[string]struct{}

func newLevelSets() levelSets {
	var s levelSets
	for i := range s {
		s[i] = make(map[string]struct{})
	}
	return s
}

func (s levelSets) sections() AccuracySections {
	var out AccuracySections
	for lvl, set := range s {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[lvl] = ids
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
