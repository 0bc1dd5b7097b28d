package analyzer

import (
	"fmt"

	"github.com/blang/semver/v4"
	configv1 "github.com/openshift/api/config/v1"
	"github.com/replicatedhq/mustgather/pkg/records"
)

type AnalyzeClusterOperators struct{}

func (a *AnalyzeClusterOperators) Title() string {
	return "Cluster Operators"
}

func (a *AnalyzeClusterOperators) Analyze(in *Input, opts Options) ([]Issue, error) {
	clusterVersion, clusterVersionErr := semver.ParseTolerant(in.ClusterInfo.Version)

	issues := []Issue{}
	for _, op := range in.ClusterOperators {
		affected := []string{entity("clusteroperator", op.Name)}

		if op.Degraded {
			cond, _ := records.FindCondition(op.Conditions, string(configv1.OperatorDegraded))
			issues = append(issues, newIssue(SeverityCritical, CategoryClusterOperator,
				fmt.Sprintf("Cluster operator %s is degraded", op.Name),
				conditionDetail(cond),
				affected,
				fmt.Sprintf("Review the %s operator's pods and logs", op.Name),
			).markDegraded())
		}

		if cond, ok := records.FindCondition(op.Conditions, string(configv1.OperatorAvailable)); ok && cond.IsFalse() {
			issues = append(issues, newIssue(SeverityCritical, CategoryClusterOperator,
				fmt.Sprintf("Cluster operator %s is unavailable", op.Name),
				conditionDetail(cond),
				affected,
				fmt.Sprintf("Review the %s operator's pods and logs", op.Name),
			).markDegraded())
		}

		if op.Progressing {
			cond, _ := records.FindCondition(op.Conditions, string(configv1.OperatorProgressing))
			issues = append(issues, newIssue(SeverityInfo, CategoryClusterOperator,
				fmt.Sprintf("Cluster operator %s is progressing", op.Name),
				conditionDetail(cond),
				affected,
			))
		}

		if clusterVersionErr != nil || op.Version == "" {
			continue
		}
		opVersion, err := semver.ParseTolerant(op.Version)
		if err != nil {
			continue
		}
		if opVersion.Major != clusterVersion.Major || opVersion.Minor != clusterVersion.Minor {
			issues = append(issues, newIssue(SeverityWarning, CategoryClusterOperator,
				fmt.Sprintf("Cluster operator %s version differs from the cluster", op.Name),
				fmt.Sprintf("Operator reports version %s while the cluster version is %s.", op.Version, in.ClusterInfo.Version),
				affected,
				"Check whether a cluster upgrade is stalled",
			))
		}
	}
	return issues, nil
}

type AnalyzeClusterVersion struct{}

func (a *AnalyzeClusterVersion) Title() string {
	return "Cluster Version"
}

func (a *AnalyzeClusterVersion) Analyze(in *Input, opts Options) ([]Issue, error) {
	if !in.ClusterInfo.Failing {
		return []Issue{}, nil
	}
	cond, _ := records.FindCondition(in.ClusterInfo.Conditions, "Failing")
	return []Issue{
		newIssue(SeverityCritical, CategoryClusterVersion,
			"Cluster version reports Failing",
			conditionDetail(cond),
			[]string{entity("clusterversion", "version")},
			"Review the cluster-version-operator logs",
		).markDegraded(),
	}, nil
}
