package agent

import (
	"fmt"
	"strings"
)

// BugReport is the immutable input of one localization run.
type BugReport struct {
	project     string
	bugID       string
	summary     string
	description string
}

// NewBugReport validates and builds a report. Every field must be non-blank.
func NewBugReport(project, bugID, summary, description string) (BugReport, error) {
	r := BugReport{
		project:     strings.TrimSpace(project),
		bugID:       strings.TrimSpace(bugID),
		summary:     summary,
		description: description,
	}
	if err := r.validate(); err != nil {
		return BugReport{}, err
	}
	return r, nil
}

func (r BugReport) validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"project", r.project},
		{"bug_id", r.bugID},
		{"summary", r.summary},
		{"description", r.description},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidBugReport, f.name)
		}
	}
	return nil
}

func (r BugReport) Project() string     { return r.project }
func (r BugReport) BugID() string       { return r.bugID }
func (r BugReport) Summary() string     { return r.summary }
func (r BugReport) Description() string { return r.description }

// Text joins summary and description, for lookups that rank by report content.
func (r BugReport) Text() string {
	return r.summary + "\n" + r.description
}
