// Package mustgather is the entry point for reading OpenShift must-gather
// bundles: Parse builds records from a bundle, Correlate links them,
// Analyze raises issues and ScanLogs reads container logs.
package mustgather

import (
	"github.com/go-logr/logr"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"golang.org/x/sync/semaphore"
)

// RunContext carries what every component of a run needs: a logger and
// the worker pool bounding concurrent file reads. It replaces process-wide
// state and may be shared by concurrent runs.
type RunContext struct {
	Log     logr.Logger
	Pool    *semaphore.Weighted
	Workers int
}

func NewRunContext(log logr.Logger, workers int) *RunContext {
	if workers <= 0 {
		workers = constants.DEFAULT_WORKERS
	}
	return &RunContext{
		Log:     log,
		Pool:    semaphore.NewWeighted(int64(workers)),
		Workers: workers,
	}
}

func orDefaultRunContext(rc *RunContext) *RunContext {
	if rc == nil {
		return NewRunContext(logr.Discard(), constants.DEFAULT_WORKERS)
	}
	return rc
}
