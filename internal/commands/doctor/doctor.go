// Package doctor runs environment checks for `scribble doctor`. A check
// produces one Result made of labelled items, each passing, warning or
// failing on its own.
package doctor

import "context"

// Status is the outcome of a single item.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckItem is one line of a check result.
type CheckItem struct {
	Label  string `json:"label"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func Pass(label, detail string) CheckItem { return CheckItem{label, StatusPass, detail} }
func Warn(label, detail string) CheckItem { return CheckItem{label, StatusWarn, detail} }
func Fail(label, detail string) CheckItem { return CheckItem{label, StatusFail, detail} }

// Result is the outcome of one check.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

func (r *Result) add(items ...CheckItem) {
	r.Items = append(r.Items, items...)
}

// Check is a single named diagnostic.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll runs checks in order. A cancelled context stops before the next
// check.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check.Run(ctx))
	}
	return results
}

// Summary counts items by status.
type Summary struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

// Report is the JSON shape of a doctor run.
type Report struct {
	Healthy bool     `json:"healthy"`
	Summary Summary  `json:"summary"`
	Checks  []Result `json:"checks"`
}

// NewReport summarizes results. A report is healthy when nothing failed.
func NewReport(results []Result) Report {
	var s Summary
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass:
				s.Passed++
			case StatusWarn:
				s.Warned++
			case StatusFail:
				s.Failed++
			}
		}
	}
	return Report{Healthy: s.Failed == 0, Summary: s, Checks: results}
}
