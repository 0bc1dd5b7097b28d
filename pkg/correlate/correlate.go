// Package correlate links records across kinds using weak name/namespace
// identity and label selectors. All functions are pure and return empty,
// non-nil results when nothing matches.
package correlate

import (
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/records"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// AgentsForCluster returns the agents whose cluster deployment reference
// equals the install's name and namespace.
func AgentsForCluster(agents []records.AgentRecord, install records.ClusterInstallRecord) []records.AgentRecord {
	return AgentsForClusterRef(agents, install.Name, install.Namespace)
}

// AgentsForClusterRef matches agents by cluster deployment name and
// namespace. Empty values match nothing.
func AgentsForClusterRef(agents []records.AgentRecord, name, namespace string) []records.AgentRecord {
	out := []records.AgentRecord{}
	if name == "" || namespace == "" {
		return out
	}
	for _, a := range agents {
		if a.ClusterDeploymentName == name && a.ClusterDeploymentNamespace == namespace {
			out = append(out, a)
		}
	}
	return out
}

type SelectorOptions struct {
	// MatchEmpty makes a pool without selector terms select every node.
	// By default such a pool selects nothing.
	MatchEmpty bool
}

// IsEmptySelector reports whether selector has no terms at all.
func IsEmptySelector(selector *metav1.LabelSelector) bool {
	return selector == nil || (len(selector.MatchLabels) == 0 && len(selector.MatchExpressions) == 0)
}

// Selector converts a pool's node selector. Match labels must all be
// present with equal values; match expressions support In, NotIn, Exists
// and DoesNotExist.
func Selector(selector *metav1.LabelSelector, opts SelectorOptions) (labels.Selector, error) {
	if IsEmptySelector(selector) {
		if opts.MatchEmpty {
			return labels.Everything(), nil
		}
		return labels.Nothing(), nil
	}
	s, err := metav1.LabelSelectorAsSelector(selector)
	if err != nil {
		return nil, errors.Wrap(err, "invalid node selector")
	}
	return s, nil
}

// NodesForPool returns the nodes selected by the pool's node selector. An
// invalid selector selects nothing and is reported as an error.
func NodesForPool(nodes []records.NodeRecord, pool records.MachineConfigPoolRecord, opts SelectorOptions) ([]records.NodeRecord, error) {
	out := []records.NodeRecord{}
	selector, err := Selector(pool.NodeSelector, opts)
	if err != nil {
		return out, errors.Wrapf(err, "machineconfigpool %s", pool.Name)
	}
	for _, n := range nodes {
		if selector.Matches(labels.Set(n.Labels)) {
			out = append(out, n)
		}
	}
	return out, nil
}

// PoolsForNode returns the pools whose selectors select the node. Pools with
// invalid selectors are skipped.
func PoolsForNode(pools []records.MachineConfigPoolRecord, node records.NodeRecord, opts SelectorOptions) []records.MachineConfigPoolRecord {
	out := []records.MachineConfigPoolRecord{}
	for _, p := range pools {
		selector, err := Selector(p.NodeSelector, opts)
		if err != nil {
			continue
		}
		if selector.Matches(labels.Set(node.Labels)) {
			out = append(out, p)
		}
	}
	return out
}

// EventsFor returns the events whose involved object has the given kind and
// name. An empty namespace ignores the involved object's namespace, which is
// how cluster-scoped owners are matched.
func EventsFor(events []records.EventRecord, kind, name, namespace string) []records.EventRecord {
	out := []records.EventRecord{}
	if name == "" {
		return out
	}
	for _, e := range events {
		if e.InvolvedObject.Kind != kind || e.InvolvedObject.Name != name {
			continue
		}
		if namespace != "" && e.InvolvedObject.Namespace != namespace {
			continue
		}
		out = append(out, e)
	}
	return out
}

// EventsForPod returns the events about the pod.
func EventsForPod(events []records.EventRecord, pod records.PodRecord) []records.EventRecord {
	if pod.Namespace == "" {
		return []records.EventRecord{}
	}
	return EventsFor(events, records.KindPod, pod.Name, pod.Namespace)
}

// EventsForNode returns the events about the node.
func EventsForNode(events []records.EventRecord, node records.NodeRecord) []records.EventRecord {
	return EventsFor(events, records.KindNode, node.Name, "")
}

// WarningEvents filters events to those of type Warning.
func WarningEvents(events []records.EventRecord) []records.EventRecord {
	out := []records.EventRecord{}
	for _, e := range events {
		if e.IsWarning() {
			out = append(out, e)
		}
	}
	return out
}
