package analyzer

import (
	"fmt"
	"strings"

	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/correlate"
	"github.com/replicatedhq/mustgather/pkg/records"
	"k8s.io/apimachinery/pkg/util/duration"
)

type AnalyzeMachineConfigPools struct{}

func (a *AnalyzeMachineConfigPools) Title() string {
	return "Machine Config Pools"
}

func (a *AnalyzeMachineConfigPools) Analyze(in *Input, opts Options) ([]Issue, error) {
	selectorOpts := correlate.SelectorOptions{MatchEmpty: opts.MatchEmptySelector}
	pools := in.MachineConfigPools
	if opts.NodeName != "" {
		node, ok := findNode(in.Nodes, opts.NodeName)
		if !ok {
			return []Issue{}, nil
		}
		pools = correlate.PoolsForNode(pools, node, selectorOpts)
	}

	issues := []Issue{}
	for _, pool := range pools {
		affected := []string{entity("machineconfigpool", pool.Name)}
		nodes, err := correlate.NodesForPool(in.Nodes, pool, selectorOpts)
		selectorNote := ""
		if err != nil {
			selectorNote = " The pool's node selector could not be evaluated."
		}
		for _, n := range nodes {
			affected = append(affected, entity("node", n.Name))
		}

		issues = append(issues, poolIssues(pool, affected, selectorNote, opts)...)
	}
	return issues, nil
}

func poolIssues(pool records.MachineConfigPoolRecord, affected []string, note string, opts Options) []Issue {
	issues := []Issue{}

	if cond, ok := records.FindCondition(pool.Conditions, records.PoolDegradedCondition); ok && cond.IsTrue() {
		description := fmt.Sprintf("Pool reports Degraded=True with %d degraded machines.%s", pool.DegradedMachineCount, note)
		if detail := conditionDetail(cond); detail != "" {
			description = fmt.Sprintf("%s %s", description, detail)
		}
		issues = append(issues, newIssue(SeverityCritical, CategoryMachineConfigPool,
			fmt.Sprintf("Machine config pool %s is degraded", pool.Name),
			description,
			affected,
			"Inspect the machine-config-daemon logs on the affected nodes",
			"Check the rendered MachineConfig for invalid content",
		).markDegraded())
	}

	if cond, ok := records.FindCondition(pool.Conditions, records.PoolUpdatingCondition); ok && cond.IsTrue() && !cond.LastTransitionTime.IsZero() {
		age := opts.Now().Sub(cond.LastTransitionTime)
		if age > opts.StuckUpdatingAfter {
			issues = append(issues, newIssue(SeverityWarning, CategoryMachineConfigPool,
				fmt.Sprintf("Machine config pool %s has been updating for %s", pool.Name, duration.HumanDuration(age)),
				fmt.Sprintf("Pool has reported Updating=True since %s.%s", cond.LastTransitionTime.UTC().Format("2006-01-02T15:04:05Z"), note),
				affected,
				"Check for nodes that cannot be drained",
				"Inspect the machine-config-daemon logs on nodes that are not yet updated",
			))
		}
	}

	if gap := pool.MachineCount - pool.UpdatedMachineCount; gap > 0 {
		severity := SeverityWarning
		if gap > constants.OUTDATED_MACHINES_WARNING_GAP {
			severity = SeverityCritical
		}
		issues = append(issues, newIssue(severity, CategoryMachineConfigPool,
			fmt.Sprintf("Machine config pool %s has %d machines not updated", pool.Name, gap),
			fmt.Sprintf("%d of %d machines run the current configuration.%s", pool.UpdatedMachineCount, pool.MachineCount, note),
			affected,
			"Check whether the pool is paused or blocked by a node that cannot be drained",
		))
	}

	if pool.UnavailableMachineCount > 0 {
		issues = append(issues, newIssue(SeverityWarning, CategoryMachineConfigPool,
			fmt.Sprintf("Machine config pool %s has %d unavailable machines", pool.Name, pool.UnavailableMachineCount),
			fmt.Sprintf("%d of %d machines are unavailable.%s", pool.UnavailableMachineCount, pool.MachineCount, note),
			affected,
			"Check the readiness of the pool's nodes",
		))
	}

	return issues
}

func findNode(nodes []records.NodeRecord, name string) (records.NodeRecord, bool) {
	for _, n := range nodes {
		if n.Name == name {
			return n, true
		}
	}
	return records.NodeRecord{}, false
}

func entity(kind string, parts ...string) string {
	return kind + "/" + strings.Join(parts, "/")
}

// conditionDetail renders "reason: message" for a condition, or whichever is set.
func conditionDetail(c records.Condition) string {
	switch {
	case c.Reason != "" && c.Message != "":
		return c.Reason + ": " + c.Message
	case c.Message != "":
		return c.Message
	default:
		return c.Reason
	}
}
