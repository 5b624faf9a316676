package model

// CheckStatus is the outcome of a host or policy check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError means sessions can't be served on this host.
	CheckStatusError CheckStatus = "error"
)

// CheckResult is a single check outcome as reported by doctor or the policy
// access checks.
type CheckResult struct {
	// ID names what was checked, e.g. "sessions_dir" or "domain:pypi.org".
	ID      string
	Message string
	Status  CheckStatus
}

// CheckSummary counts check results by status.
type CheckSummary struct {
	OK       int
	Warnings int
	Errors   int
}

// Failed returns true when at least one check errored.
func (c CheckSummary) Failed() bool { return c.Errors > 0 }

// Clean returns true when all the checks were ok.
func (c CheckSummary) Clean() bool { return c.Errors == 0 && c.Warnings == 0 }

// SummarizeChecks counts the results by status, unknown statuses are ignored.
func SummarizeChecks(results []CheckResult) CheckSummary {
	var s CheckSummary
	for _, r := range results {
		switch r.Status {
		case CheckStatusOK:
			s.OK++
		case CheckStatusWarning:
			s.Warnings++
		case CheckStatusError:
			s.Errors++
		}
	}
	return s
}
