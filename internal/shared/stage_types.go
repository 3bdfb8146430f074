package shared

import (
	"time"
)

// Stage outcomes recorded alongside latency.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeCached  = "cached"
)

// StageMeta holds operational metadata for one pipeline stage execution.
type StageMeta struct {
	Stage   string
	Model   string
	Outcome string
	Latency time.Duration
}
