package k8sutil

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"
)

const UnreachableTaint = "node.kubernetes.io/unreachable"
const NotReadyTaint = "node.kubernetes.io/not-ready"
const UnschedulableTaint = "node.kubernetes.io/unschedulable"

// NodeRoleLabelPrefix prefixes the labels a node's roles are derived from.
const NodeRoleLabelPrefix = "node-role.kubernetes.io/"

// DefaultNodeRole is assumed for nodes without role labels.
const DefaultNodeRole = "worker"

// NodePressureConditions are conditions that signal trouble when True.
var NodePressureConditions = []corev1.NodeConditionType{
	corev1.NodeMemoryPressure,
	corev1.NodeDiskPressure,
	corev1.NodePIDPressure,
	corev1.NodeNetworkUnavailable,
}

// NodeRoles returns the sorted role names found in node-role labels.
func NodeRoles(labels map[string]string) []string {
	roles := sets.New[string]()
	for key := range labels {
		if len(key) > len(NodeRoleLabelPrefix) && key[:len(NodeRoleLabelPrefix)] == NodeRoleLabelPrefix {
			roles.Insert(key[len(NodeRoleLabelPrefix):])
		}
	}
	if roles.Len() == 0 {
		roles.Insert(DefaultNodeRole)
	}
	return sets.List(roles)
}

// NodeReadyCondition returns the node's Ready condition, or nil.
func NodeReadyCondition(node *corev1.Node) *corev1.NodeCondition {
	for i := range node.Status.Conditions {
		if node.Status.Conditions[i].Type == corev1.NodeReady {
			return &node.Status.Conditions[i]
		}
	}
	return nil
}

// NodeIsReady reports whether the node's Ready condition is True.
func NodeIsReady(node *corev1.Node) bool {
	cond := NodeReadyCondition(node)
	return cond != nil && cond.Status == corev1.ConditionTrue
}

// NodeProblemTaints returns the keys of taints the node lifecycle controller
// sets on unhealthy or cordoned nodes.
func NodeProblemTaints(node *corev1.Node) []string {
	var found []string
	for _, taint := range node.Spec.Taints {
		switch taint.Key {
		case NotReadyTaint, UnreachableTaint, UnschedulableTaint:
			found = append(found, taint.Key)
		}
	}
	return found
}
