package cfddns

import (
	"net/netip"
	"time"
)

type Action int

const (
	Skipped Action = iota
	Updated
	Failed
)

func (a Action) String() string {
	switch a {
	case Skipped:
		return "skipped"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// SkipAlreadyCurrent is the Reason given for records that already hold the resolved address.
const SkipAlreadyCurrent = "already current"

// Outcome is what a pass did with one managed record.
type Outcome struct {
	Zone   Zone
	Record Record // as it was before the pass
	Action Action
	Reason string // set when Skipped
	Err    error  // set when Failed
}

// Report summarizes one reconciliation pass.
//
// Err is set when the pass ended early.
// Outcomes still lists every record handled before that happened.
type Report struct {
	Address  netip.Addr
	Outcomes []Outcome
	Err      error
	Duration time.Duration
}

// Count returns the number of outcomes with the given action.
func (r Report) Count(a Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}
