// internal/syncer/result.go
package syncer

import "github.com/pharmabridge/pharmsync/internal/staging"

// MaxReportedErrors caps the error list in a sync result. Skipped keeps the
// true count; only the first N reasons are carried back to the caller.
const MaxReportedErrors = 20

// Result is what one normalizeAndSync call reports back. Partial success is
// always distinguishable from total failure: counts are filled in even when
// the call returns an error.
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    []staging.RowError
}

func (r *Result) addErrors(errs []staging.RowError) {
	r.Skipped += len(errs)
	for _, e := range errs {
		if len(r.Errors) >= MaxReportedErrors {
			return
		}
		r.Errors = append(r.Errors, e)
	}
}

func (r *Result) addError(index int, reason string) {
	r.addErrors([]staging.RowError{{Index: index, Reason: reason}})
}

func (r *Result) absorb(c Counts) {
	r.Created += c.Created
	r.Updated += c.Updated
	r.Unchanged += c.Unchanged
}
