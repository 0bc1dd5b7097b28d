package mustgather

import (
	"context"

	analyzer "github.com/replicatedhq/mustgather/pkg/analyze"
	"github.com/replicatedhq/mustgather/pkg/types"
)

// AnalysisInput exposes the parsed records to the rule set.
func (r *ParseResult) AnalysisInput() *analyzer.Input {
	return &analyzer.Input{
		ClusterInfo:        r.ClusterInfo,
		Agents:             r.Agents,
		ClusterInstalls:    r.ClusterInstalls,
		Nodes:              r.Nodes,
		MachineConfigPools: r.MachineConfigPools,
		Pods:               r.Pods,
		Events:             r.Events,
		ClusterOperators:   r.ClusterOperators,
	}
}

// Analyze runs the rule set over a parse result. It does not touch the
// filesystem and may be called any number of times per result.
func Analyze(ctx context.Context, result *ParseResult, opts analyzer.Options) (*analyzer.Result, error) {
	if result == nil {
		return nil, types.NewInvalidInputError("", "no parse result", nil)
	}
	return analyzer.Analyze(ctx, result.AnalysisInput(), opts)
}
