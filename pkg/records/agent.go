package records

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/decode"
	"github.com/replicatedhq/mustgather/pkg/redact"
)

const (
	// AgentInstalledCondition carries an agent's install failure.
	AgentInstalledCondition = "Installed"
	// ClusterCompletedCondition carries a cluster install failure.
	ClusterCompletedCondition = "Completed"

	defaultAgentRole = "auto-assign"

	AgentStatusInstalled = "installed"
	AgentStatusUnknown   = "unknown"
)

// AgentTarget selects Agent documents.
var AgentTarget = decode.Target{Kind: KindAgent, APIVersionPrefix: "agent-install.openshift.io"}

// AgentClusterInstallTarget selects AgentClusterInstall documents.
var AgentClusterInstallTarget = decode.Target{Kind: KindAgentClusterInstall, APIVersionPrefix: "extensions.hive.openshift.io"}

// AgentRecord is one host being installed through the assisted installer.
type AgentRecord struct {
	Name                       string      `json:"name" yaml:"name"`
	Namespace                  string      `json:"namespace" yaml:"namespace"`
	ClusterDeploymentName      string      `json:"clusterDeploymentName" yaml:"clusterDeploymentName"`
	ClusterDeploymentNamespace string      `json:"clusterDeploymentNamespace" yaml:"clusterDeploymentNamespace"`
	Approved                   bool        `json:"approved" yaml:"approved"`
	Role                       string      `json:"role" yaml:"role"`
	Hostname                   string      `json:"hostname" yaml:"hostname"`
	Conditions                 []Condition `json:"conditions" yaml:"conditions"`
	// Status is a short label derived from the conditions, see AgentStatus.
	Status string `json:"status" yaml:"status"`
	// ValidationFailures counts host validations reporting "failure".
	ValidationFailures int `json:"validationFailures" yaml:"validationFailures"`
	// FailedValidations names the failed validations as group/id, with the
	// validation message when there is one.
	FailedValidations []string  `json:"failedValidations,omitempty" yaml:"failedValidations,omitempty"`
	Failed            bool      `json:"failed" yaml:"failed"`
	Reason            string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	CreationTimestamp time.Time `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	Source            string    `json:"source" yaml:"source"`
}

func (a AgentRecord) Kind() string { return KindAgent }
func (a AgentRecord) Key() Key     { return Key{Namespace: a.Namespace, Name: a.Name} }

// BuildAgent projects an Agent document. It returns an error when the
// document does not have the expected shape.
func BuildAgent(doc decode.Document) (*AgentRecord, error) {
	f := &fields{obj: doc.Object}
	name, namespace, created := f.metadata(doc.Namespace)

	role := f.str("spec", "role")
	if role == "" || role == defaultAgentRole {
		role = orDefault(f.str("status", "role"), role)
	}

	agent := &AgentRecord{
		Name:                       name,
		Namespace:                  namespace,
		ClusterDeploymentName:      f.str("spec", "clusterDeploymentName", "name"),
		ClusterDeploymentNamespace: f.str("spec", "clusterDeploymentName", "namespace"),
		Approved:                   f.boolean("spec", "approved"),
		Role:                       orDefault(role, defaultAgentRole),
		Hostname:                   redact.Sanitize(orDefault(f.str("spec", "hostname"), f.str("status", "inventory", "hostname"))),
		Conditions:                 f.conditions(),
		FailedValidations:          failedValidations(f.object("status", "validationsInfo")),
		CreationTimestamp:          created,
		Source:                     doc.Source,
	}
	if f.err != nil {
		return nil, errors.Wrapf(f.err, "agent %s", name)
	}

	agent.ValidationFailures = len(agent.FailedValidations)
	agent.Status = AgentStatus(agent.Conditions)
	agent.Failed, agent.Reason = installFailure(agent.Conditions, AgentInstalledCondition)
	return agent, nil
}

// AgentStatus labels an agent from its conditions. The first condition that
// decides wins: Installed=True is "installed", RequirementsMet=False and
// Validated=False carry their reason, and a reason mentioning a failure or
// error is "failed: <reason>". Otherwise the last condition is reported as
// "<type>: <status>", and an agent without conditions is "unknown".
func AgentStatus(conditions []Condition) string {
	if len(conditions) == 0 {
		return AgentStatusUnknown
	}
	for _, c := range conditions {
		reason := strings.ToLower(c.Reason)
		switch {
		case c.Type == AgentInstalledCondition && c.IsTrue():
			return AgentStatusInstalled
		case c.Type == "RequirementsMet" && c.IsFalse():
			return "requirements_not_met: " + c.Reason
		case c.Type == "Validated" && c.IsFalse():
			return "validation_failed: " + c.Reason
		case strings.Contains(reason, "failed") || strings.Contains(reason, "error"):
			return "failed: " + c.Reason
		}
	}
	last := conditions[len(conditions)-1]
	return fmt.Sprintf("%s: %s", orDefault(last.Type, AgentStatusUnknown), orDefault(last.Status, AgentStatusUnknown))
}

// AgentStatusFailed reports whether a status label from AgentStatus
// describes a failure.
func AgentStatusFailed(status string) bool {
	status = strings.ToLower(status)
	return strings.Contains(status, "failed") || strings.Contains(status, "error")
}

func failedValidations(info map[string]interface{}) []string {
	failed := []string{}
	for group, v := range info {
		validations, ok := v.([]interface{})
		if !ok {
			continue
		}
		for _, item := range validations {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if status, _ := m["status"].(string); status != "failure" {
				continue
			}
			id, _ := m["id"].(string)
			entry := group + "/" + orDefault(id, AgentStatusUnknown)
			if message, _ := m["message"].(string); message != "" {
				entry += ": " + redact.Sanitize(message)
			}
			failed = append(failed, entry)
		}
	}
	sort.Strings(failed)
	return failed
}

// ClusterInstallRecord is an AgentClusterInstall.
type ClusterInstallRecord struct {
	Name                  string      `json:"name" yaml:"name"`
	Namespace             string      `json:"namespace" yaml:"namespace"`
	ClusterDeploymentName string      `json:"clusterDeploymentName" yaml:"clusterDeploymentName"`
	ImageSetName          string      `json:"imageSetName,omitempty" yaml:"imageSetName,omitempty"`
	ControlPlaneAgents    int64       `json:"controlPlaneAgents" yaml:"controlPlaneAgents"`
	WorkerAgents          int64       `json:"workerAgents" yaml:"workerAgents"`
	Conditions            []Condition `json:"conditions" yaml:"conditions"`
	Failed                bool        `json:"failed" yaml:"failed"`
	Reason                string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Source                string      `json:"source" yaml:"source"`
}

func (c ClusterInstallRecord) Kind() string { return KindAgentClusterInstall }
func (c ClusterInstallRecord) Key() Key     { return Key{Namespace: c.Namespace, Name: c.Name} }

// BuildClusterInstall projects an AgentClusterInstall document.
func BuildClusterInstall(doc decode.Document) (*ClusterInstallRecord, error) {
	f := &fields{obj: doc.Object}
	name, namespace, _ := f.metadata(doc.Namespace)

	controlPlane, _ := f.integer("spec", "provisionRequirements", "controlPlaneAgents")
	workers, _ := f.integer("spec", "provisionRequirements", "workerAgents")

	install := &ClusterInstallRecord{
		Name:                  name,
		Namespace:             namespace,
		ClusterDeploymentName: orDefault(f.str("spec", "clusterDeploymentRef", "name"), name),
		ImageSetName:          f.str("spec", "imageSetRef", "name"),
		ControlPlaneAgents:    controlPlane,
		WorkerAgents:          workers,
		Conditions:            f.conditions(),
		Source:                doc.Source,
	}
	if f.err != nil {
		return nil, errors.Wrapf(f.err, "agentclusterinstall %s", name)
	}

	install.Failed, install.Reason = installFailure(install.Conditions, ClusterCompletedCondition)
	return install, nil
}

// SortAgents orders agents by namespace and name.
func SortAgents(agents []AgentRecord) {
	sort.SliceStable(agents, func(i, j int) bool { return agents[i].Key().Less(agents[j].Key()) })
}

// SortClusterInstalls orders cluster installs by namespace and name.
func SortClusterInstalls(installs []ClusterInstallRecord) {
	sort.SliceStable(installs, func(i, j int) bool { return installs[i].Key().Less(installs[j].Key()) })
}
