package analyzer

import (
	"fmt"
	"strings"

	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/correlate"
	"github.com/replicatedhq/mustgather/pkg/k8sutil"
	"github.com/replicatedhq/mustgather/pkg/records"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/strings/slices"
)

// ActionableEventReasons are Warning event reasons that count as pod issues.
// Other Warning events are reported as pod warnings.
var ActionableEventReasons = []string{"Failed", "FailedMount", "FailedScheduling", "Unhealthy"}

const podNotReady = "Pod is not ready"

// PodReport collects the findings for one pod. Issues and ContainerIssues
// raise an Issue; Warnings alone raise an info Issue.
type PodReport struct {
	Name            string   `json:"name" yaml:"name"`
	Namespace       string   `json:"namespace" yaml:"namespace"`
	NodeName        string   `json:"nodeName,omitempty" yaml:"nodeName,omitempty"`
	Phase           string   `json:"phase" yaml:"phase"`
	Issues          []string `json:"issues" yaml:"issues"`
	ContainerIssues []string `json:"containerIssues" yaml:"containerIssues"`
	Warnings        []string `json:"warnings" yaml:"warnings"`
}

func (r PodReport) HasFindings() bool {
	return r.HasIssues() || len(r.Warnings) > 0
}

// HasIssues ignores warnings.
func (r PodReport) HasIssues() bool {
	return len(r.Issues) > 0 || len(r.ContainerIssues) > 0
}

// AnalyzePod checks one pod and the events about it.
func AnalyzePod(pod records.PodRecord, events []records.EventRecord) PodReport {
	report := PodReport{
		Name:            pod.Name,
		Namespace:       pod.Namespace,
		NodeName:        pod.NodeName,
		Phase:           pod.Phase,
		Issues:          []string{},
		ContainerIssues: []string{},
		Warnings:        []string{},
	}

	// completed pods report Ready=False
	if pod.Ready == corev1.ConditionFalse && pod.Phase != string(corev1.PodSucceeded) {
		report.Issues = append(report.Issues, podNotReady)
	}
	switch {
	case pod.RestartCount > constants.POD_RESTART_ISSUE_THRESHOLD:
		report.Issues = append(report.Issues, fmt.Sprintf("Pod has restarted %d times", pod.RestartCount))
	case pod.RestartCount > 0:
		report.Warnings = append(report.Warnings, fmt.Sprintf("Pod has restarted %d times", pod.RestartCount))
	}
	if pod.Phase == string(corev1.PodFailed) || pod.Phase == string(corev1.PodPending) {
		phase := fmt.Sprintf("Pod is in phase %s", pod.Phase)
		if pod.StatusReason != "" && pod.StatusReason != pod.Phase {
			phase = fmt.Sprintf("%s (%s)", phase, pod.StatusReason)
		}
		report.Issues = append(report.Issues, phase)
	}

	for _, c := range pod.Containers {
		report.ContainerIssues = append(report.ContainerIssues, containerIssues(c)...)
	}

	for _, e := range correlate.WarningEvents(correlate.EventsForPod(events, pod)) {
		finding := fmt.Sprintf("Event %s: %s", e.Reason, e.Message)
		if slices.Contains(ActionableEventReasons, e.Reason) {
			report.Issues = append(report.Issues, finding)
		} else {
			report.Warnings = append(report.Warnings, finding)
		}
	}

	return report
}

func containerIssues(c records.ContainerRecord) []string {
	kind := "Container"
	if c.Init {
		kind = "Init container"
	}

	found := []string{}
	if c.RestartCount > constants.CONTAINER_RESTART_ISSUE_THRESHOLD {
		found = append(found, fmt.Sprintf("%s %s has restarted %d times", kind, c.Name, c.RestartCount))
	}
	switch c.State {
	case k8sutil.ContainerStateWaiting:
		found = append(found, strings.TrimSpace(fmt.Sprintf("%s %s is waiting: %s %s", kind, c.Name, c.StateReason, c.StateMessage)))
	case k8sutil.ContainerStateTerminated:
		// a clean exit is how init containers and jobs finish
		if c.ExitCode == 0 && (c.StateReason == "" || c.StateReason == "Completed") {
			break
		}
		found = append(found, fmt.Sprintf("%s %s terminated: %s (exit code %d)", kind, c.Name, c.StateReason, c.ExitCode))
	}
	return found
}

// PodReports analyzes the pods selected by the namespace and node options and
// returns the reports that have findings.
func PodReports(in *Input, opts Options) []PodReport {
	reports := []PodReport{}
	for _, pod := range in.Pods {
		if !podSelected(pod, opts) {
			continue
		}
		if report := AnalyzePod(pod, in.Events); report.HasFindings() {
			reports = append(reports, report)
		}
	}
	return reports
}

func podSelected(pod records.PodRecord, opts Options) bool {
	if opts.Namespace != "" && pod.Namespace != opts.Namespace {
		return false
	}
	return opts.NodeName == "" || pod.NodeName == opts.NodeName
}

type AnalyzePods struct {
	reports []PodReport
}

func (a *AnalyzePods) Title() string {
	return "Pods"
}

func (a *AnalyzePods) Analyze(in *Input, opts Options) ([]Issue, error) {
	issues := []Issue{}
	for _, r := range a.reports {
		affected := []string{entity("pod", r.Namespace, r.Name)}
		if r.NodeName != "" {
			affected = append(affected, entity("node", r.NodeName))
		}

		problems := append(append([]string{}, r.Issues...), r.ContainerIssues...)
		if len(problems) == 0 {
			issues = append(issues, newIssue(SeverityInfo, CategoryPod,
				fmt.Sprintf("Pod %s/%s has warnings", r.Namespace, r.Name),
				strings.Join(r.Warnings, ". "),
				affected,
			))
			continue
		}

		severity := SeverityWarning
		if r.Phase == string(corev1.PodFailed) || slices.Contains(r.Issues, podNotReady) {
			severity = SeverityCritical
		}
		issue := newIssue(severity, CategoryPod,
			fmt.Sprintf("Pod %s/%s is unhealthy", r.Namespace, r.Name),
			strings.Join(problems, ". "),
			affected,
			fmt.Sprintf("Review the logs of pod %s in namespace %s", r.Name, r.Namespace),
			"Review the pod's events for scheduling, mount or probe failures",
		)
		if r.Phase == string(corev1.PodFailed) {
			issue = issue.markDegraded()
		}
		issues = append(issues, issue)
	}
	return issues, nil
}
