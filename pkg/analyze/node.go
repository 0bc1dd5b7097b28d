package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/replicatedhq/mustgather/pkg/correlate"
	"github.com/replicatedhq/mustgather/pkg/k8sutil"
	"github.com/replicatedhq/mustgather/pkg/records"
	"golang.org/x/exp/maps"
	corev1 "k8s.io/api/core/v1"
)

// maxEventsInDescription bounds how many event reasons are quoted in one issue.
const maxEventsInDescription = 5

type AnalyzeNodes struct{}

func (a *AnalyzeNodes) Title() string {
	return "Nodes"
}

func (a *AnalyzeNodes) Analyze(in *Input, opts Options) ([]Issue, error) {
	issues := []Issue{}
	for _, node := range in.Nodes {
		if opts.NodeName != "" && node.Name != opts.NodeName {
			continue
		}
		events := correlate.WarningEvents(correlate.EventsForNode(in.Events, node))
		affected := []string{entity("node", node.Name)}

		if !node.Ready {
			description := "Ready condition not reported."
			if cond, ok := records.FindCondition(node.Conditions, string(corev1.NodeReady)); ok {
				description = fmt.Sprintf("Ready=%s.", cond.Status)
				if detail := conditionDetail(cond); detail != "" {
					description = fmt.Sprintf("%s %s", description, detail)
				}
			}
			if summary := summarizeEvents(events); summary != "" {
				description = fmt.Sprintf("%s Recent warning events: %s", description, summary)
			}
			issues = append(issues, newIssue(SeverityCritical, CategoryNode,
				fmt.Sprintf("Node %s is not ready", node.Name),
				description,
				affected,
				"Check kubelet and CRI-O status on the node",
				"Review the node's journal for kubelet errors",
			).markDegraded())
		}

		pressure := []string{}
		for _, condType := range k8sutil.NodePressureConditions {
			if records.IsConditionTrue(node.Conditions, string(condType)) {
				pressure = append(pressure, string(condType))
			}
		}
		if len(pressure) > 0 {
			description := fmt.Sprintf("Node reports %s.", strings.Join(pressure, ", "))
			if node.Ready {
				if summary := summarizeEvents(events); summary != "" {
					description = fmt.Sprintf("%s Recent warning events: %s", description, summary)
				}
			}
			issues = append(issues, newIssue(SeverityWarning, CategoryNode,
				fmt.Sprintf("Node %s is under pressure", node.Name),
				description,
				affected,
				"Free resources on the node or reschedule workloads",
			))
		}

		if node.Unschedulable {
			issues = append(issues, newIssue(SeverityInfo, CategoryNode,
				fmt.Sprintf("Node %s is cordoned", node.Name),
				"Node is marked unschedulable.",
				affected,
				"Uncordon the node once maintenance is complete",
			))
		}
	}
	return issues, nil
}

// summarizeEvents groups warning events by reason, ordered by reason.
func summarizeEvents(events []records.EventRecord) string {
	if len(events) == 0 {
		return ""
	}

	byReason := map[string][]records.EventRecord{}
	for _, e := range events {
		byReason[e.Reason] = append(byReason[e.Reason], e)
	}
	reasons := maps.Keys(byReason)
	sort.Strings(reasons)

	parts := []string{}
	for i, reason := range reasons {
		if i == maxEventsInDescription {
			parts = append(parts, fmt.Sprintf("and %d more", len(reasons)-i))
			break
		}
		group := byReason[reason]
		count := int32(0)
		for _, e := range group {
			count += max(e.Count, 1)
		}
		parts = append(parts, fmt.Sprintf("%s (x%d): %s", reason, count, group[len(group)-1].Message))
	}
	return strings.Join(parts, "; ")
}
