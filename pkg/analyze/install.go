package analyzer

import (
	"fmt"
	"strings"

	"github.com/replicatedhq/mustgather/pkg/correlate"
	"github.com/replicatedhq/mustgather/pkg/records"
)

const clusterInstallCompleted = "Completed"

// AnalyzeInstalls reports failed cluster installs and agents, agents with
// failed host validations, and agents waiting for approval while their
// cluster installs.
type AnalyzeInstalls struct{}

func (a *AnalyzeInstalls) Title() string {
	return "Cluster Installs"
}

func (a *AnalyzeInstalls) Analyze(in *Input, opts Options) ([]Issue, error) {
	issues := []Issue{}

	for _, aci := range in.ClusterInstalls {
		if opts.Namespace != "" && aci.Namespace != opts.Namespace {
			continue
		}
		if !aci.Failed {
			continue
		}
		affected := []string{entity("agentclusterinstall", aci.Namespace, aci.Name)}
		for _, agent := range correlate.AgentsForCluster(in.Agents, aci) {
			affected = append(affected, entity("agent", agent.Namespace, agent.Name))
		}
		issues = append(issues, newIssue(SeverityCritical, CategoryInstall,
			fmt.Sprintf("Cluster installation %s/%s failed", aci.Namespace, aci.Name),
			aci.Reason,
			affected,
			"Review the assisted-service logs for the cluster",
			"Check the conditions of the cluster's agents",
		).markDegraded())
	}

	for _, agent := range in.Agents {
		if opts.Namespace != "" && agent.Namespace != opts.Namespace {
			continue
		}
		affected := []string{entity("agent", agent.Namespace, agent.Name)}
		if agent.ClusterDeploymentName != "" {
			affected = append(affected, entity("clusterdeployment", agent.ClusterDeploymentNamespace, agent.ClusterDeploymentName))
		}

		if agent.ValidationFailures > 0 {
			issues = append(issues, newIssue(SeverityWarning, CategoryInstall,
				fmt.Sprintf("Agent %s/%s has %d failed host validations", agent.Namespace, agent.Name, agent.ValidationFailures),
				strings.Join(agent.FailedValidations, "; "),
				affected,
				"Fix the failing host validations before installing the host",
			))
		}

		if agent.Failed {
			issues = append(issues, newIssue(SeverityCritical, CategoryInstall,
				fmt.Sprintf("Agent %s/%s failed to install", agent.Namespace, agent.Name),
				agent.Reason,
				affected,
				"Review the agent's installation logs",
				"Check host validations for the agent",
			).markDegraded())
			continue
		}

		if !agent.Approved {
			if aci, ok := installingClusterFor(in.ClusterInstalls, agent); ok {
				issues = append(issues, newIssue(SeverityInfo, CategoryInstall,
					fmt.Sprintf("Agent %s/%s is not approved", agent.Namespace, agent.Name),
					fmt.Sprintf("Cluster %s is installing but the agent has not been approved.", aci.Name),
					affected,
					"Approve the agent if it should join the cluster",
				))
			}
		}
	}

	return issues, nil
}

// installingClusterFor returns the agent's cluster install when it has
// neither completed nor failed.
func installingClusterFor(installs []records.ClusterInstallRecord, agent records.AgentRecord) (records.ClusterInstallRecord, bool) {
	for _, aci := range installs {
		if len(correlate.AgentsForCluster([]records.AgentRecord{agent}, aci)) == 0 {
			continue
		}
		if aci.Failed || records.IsConditionTrue(aci.Conditions, clusterInstallCompleted) {
			return records.ClusterInstallRecord{}, false
		}
		return aci, true
	}
	return records.ClusterInstallRecord{}, false
}
