package analyzer

import (
	"fmt"
	"math"

	"github.com/replicatedhq/mustgather/pkg/records"
	corev1 "k8s.io/api/core/v1"
)

type MachineConfigPoolSummary struct {
	Total         int      `json:"total" yaml:"total"`
	Healthy       int      `json:"healthy" yaml:"healthy"`
	Degraded      int      `json:"degraded" yaml:"degraded"`
	Updating      int      `json:"updating" yaml:"updating"`
	HealthyPools  []string `json:"healthyPools" yaml:"healthyPools"`
	DegradedPools []string `json:"degradedPools" yaml:"degradedPools"`
	UpdatingPools []string `json:"updatingPools" yaml:"updatingPools"`
}

type NodeSummary struct {
	Total    int `json:"total" yaml:"total"`
	Ready    int `json:"ready" yaml:"ready"`
	NotReady int `json:"notReady" yaml:"notReady"`
	// ReadyPercentage is rounded to one decimal and is 0 without nodes.
	ReadyPercentage float64 `json:"readyPercentage" yaml:"readyPercentage"`
}

// PodPhaseCounts counts pods by phase. Phases other than the four known
// ones count as unknown.
type PodPhaseCounts struct {
	Total     int `json:"total" yaml:"total"`
	Running   int `json:"running" yaml:"running"`
	Pending   int `json:"pending" yaml:"pending"`
	Failed    int `json:"failed" yaml:"failed"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Unknown   int `json:"unknown" yaml:"unknown"`
}

func (c *PodPhaseCounts) add(phase string) {
	c.Total++
	switch corev1.PodPhase(phase) {
	case corev1.PodRunning:
		c.Running++
	case corev1.PodPending:
		c.Pending++
	case corev1.PodFailed:
		c.Failed++
	case corev1.PodSucceeded:
		c.Succeeded++
	default:
		c.Unknown++
	}
}

type NamespacePodSummary struct {
	PodPhaseCounts `json:",inline" yaml:",inline"`
	// WithIssues counts pods whose report has issues, not just warnings.
	WithIssues int `json:"withIssues" yaml:"withIssues"`
}

// PodSummary covers the pods selected by the namespace and node options.
type PodSummary struct {
	PodPhaseCounts `json:",inline" yaml:",inline"`
	WithRestarts   int                            `json:"withRestarts" yaml:"withRestarts"`
	NotReady       int                            `json:"notReady" yaml:"notReady"`
	Namespaces     map[string]NamespacePodSummary `json:"namespaces" yaml:"namespaces"`
}

// AgentSummary covers the agents in the selected namespace.
type AgentSummary struct {
	Total       int            `json:"total" yaml:"total"`
	Approved    int            `json:"approved" yaml:"approved"`
	Pending     int            `json:"pending" yaml:"pending"`
	Installed   int            `json:"installed" yaml:"installed"`
	Failed      int            `json:"failed" yaml:"failed"`
	ByStatus    map[string]int `json:"byStatus" yaml:"byStatus"`
	ByRole      map[string]int `json:"byRole" yaml:"byRole"`
	ByCluster   map[string]int `json:"byCluster" yaml:"byCluster"`
	ByNamespace map[string]int `json:"byNamespace" yaml:"byNamespace"`
	// Recommendations is empty when there are no agents.
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

type Summary struct {
	TotalIssues        int                      `json:"totalIssues" yaml:"totalIssues"`
	IssuesBySeverity   map[Severity]int         `json:"issuesBySeverity" yaml:"issuesBySeverity"`
	MachineConfigPools MachineConfigPoolSummary `json:"machineConfigPools" yaml:"machineConfigPools"`
	Nodes              NodeSummary              `json:"nodes" yaml:"nodes"`
	Pods               PodSummary               `json:"pods" yaml:"pods"`
	Agents             AgentSummary             `json:"agents" yaml:"agents"`
	OverallHealth      Health                   `json:"overallHealth" yaml:"overallHealth"`
}

// Summarize counts the given issues by severity, classifies every pool and
// node in the input, and counts the pods and agents the options select.
// reports are the pod reports the issues were raised from.
func Summarize(in *Input, issues []Issue, reports []PodReport, opts Options) Summary {
	s := Summary{
		TotalIssues:      len(issues),
		IssuesBySeverity: map[Severity]int{},
		MachineConfigPools: MachineConfigPoolSummary{
			HealthyPools:  []string{},
			DegradedPools: []string{},
			UpdatingPools: []string{},
		},
		Pods:   summarizePods(in.Pods, reports, opts),
		Agents: summarizeAgents(in.Agents, opts),
	}
	for _, sev := range Severities() {
		s.IssuesBySeverity[sev] = 0
	}
	for _, issue := range issues {
		s.IssuesBySeverity[issue.Severity]++
	}
	s.OverallHealth = OverallHealth(issues)

	for _, pool := range in.MachineConfigPools {
		mcp := &s.MachineConfigPools
		mcp.Total++
		switch pool.State() {
		case records.PoolDegraded:
			mcp.Degraded++
			mcp.DegradedPools = append(mcp.DegradedPools, pool.Name)
		case records.PoolUpdating:
			mcp.Updating++
			mcp.UpdatingPools = append(mcp.UpdatingPools, pool.Name)
		default:
			mcp.Healthy++
			mcp.HealthyPools = append(mcp.HealthyPools, pool.Name)
		}
	}

	for _, node := range in.Nodes {
		s.Nodes.Total++
		if node.Ready {
			s.Nodes.Ready++
		} else {
			s.Nodes.NotReady++
		}
	}
	if s.Nodes.Total > 0 {
		pct := float64(s.Nodes.Ready) * 100 / float64(s.Nodes.Total)
		s.Nodes.ReadyPercentage = math.Round(pct*10) / 10
	}

	return s
}

func summarizePods(pods []records.PodRecord, reports []PodReport, opts Options) PodSummary {
	withIssues := map[records.Key]bool{}
	for _, r := range reports {
		if r.HasIssues() {
			withIssues[records.Key{Namespace: r.Namespace, Name: r.Name}] = true
		}
	}

	s := PodSummary{Namespaces: map[string]NamespacePodSummary{}}
	for _, pod := range pods {
		if !podSelected(pod, opts) {
			continue
		}
		s.add(pod.Phase)
		if pod.RestartCount > 0 {
			s.WithRestarts++
		}
		if pod.Ready == corev1.ConditionFalse && pod.Phase != string(corev1.PodSucceeded) {
			s.NotReady++
		}

		ns := s.Namespaces[pod.Namespace]
		ns.add(pod.Phase)
		if withIssues[pod.Key()] {
			ns.WithIssues++
		}
		s.Namespaces[pod.Namespace] = ns
	}
	return s
}

func summarizeAgents(agents []records.AgentRecord, opts Options) AgentSummary {
	s := AgentSummary{
		ByStatus:        map[string]int{},
		ByRole:          map[string]int{},
		ByCluster:       map[string]int{},
		ByNamespace:     map[string]int{},
		Recommendations: []string{},
	}
	for _, agent := range agents {
		if opts.Namespace != "" && agent.Namespace != opts.Namespace {
			continue
		}
		s.Total++
		s.ByRole[agent.Role]++
		s.ByCluster[orUnknown(agent.ClusterDeploymentName)]++
		s.ByNamespace[orUnknown(agent.Namespace)]++
		s.ByStatus[agent.Status]++

		if agent.Approved {
			s.Approved++
		} else {
			s.Pending++
		}
		switch {
		case agent.Status == records.AgentStatusInstalled:
			s.Installed++
		case agent.Failed || records.AgentStatusFailed(agent.Status):
			s.Failed++
		}
	}
	if s.Total == 0 {
		return s
	}

	if s.Failed > 0 {
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Failed agents: %d. Check the agent conditions and debug info.", s.Failed))
	}
	if s.Pending > 0 {
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Agents not approved: %d. Approve them to proceed with the installation.", s.Pending))
	}
	if s.Installed == 0 {
		s.Recommendations = append(s.Recommendations, "No agent has completed installation. Check the cluster deployment status and agent conditions.")
	}
	if len(s.ByCluster) > 1 {
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Agents belong to %d cluster deployments. Verify this is expected.", len(s.ByCluster)))
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return records.UnknownName
	}
	return s
}

// OverallHealth is critical when any issue is critical, warning when there
// are any issues, and healthy otherwise.
func OverallHealth(issues []Issue) Health {
	health := HealthHealthy
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			return HealthCritical
		}
		health = HealthWarning
	}
	return health
}
