package records

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/decode"
	"github.com/replicatedhq/mustgather/pkg/k8sutil"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

var NodeTarget = decode.Target{Kind: KindNode, APIVersionPrefix: "v1"}

type NodeRecord struct {
	Name           string            `json:"name" yaml:"name"`
	Roles          []string          `json:"roles" yaml:"roles"`
	Ready          bool              `json:"ready" yaml:"ready"`
	Unschedulable  bool              `json:"unschedulable" yaml:"unschedulable"`
	Conditions     []Condition       `json:"conditions" yaml:"conditions"`
	Labels         map[string]string `json:"labels" yaml:"labels"`
	Taints         []string          `json:"taints,omitempty" yaml:"taints,omitempty"`
	KubeletVersion string            `json:"kubeletVersion,omitempty" yaml:"kubeletVersion,omitempty"`
	OSImage        string            `json:"osImage,omitempty" yaml:"osImage,omitempty"`
	Source         string            `json:"source" yaml:"source"`
}

func (n NodeRecord) Kind() string { return KindNode }
func (n NodeRecord) Key() Key     { return Key{Name: n.Name} }

func BuildNode(doc decode.Document) (*NodeRecord, error) {
	var node corev1.Node
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(doc.Object, &node); err != nil {
		return nil, errors.Wrap(err, "failed to convert node")
	}

	labels := node.Labels
	if labels == nil {
		labels = map[string]string{}
	}

	conditions := make([]Condition, 0, len(node.Status.Conditions))
	for _, c := range node.Status.Conditions {
		conditions = append(conditions, newCondition(string(c.Type), string(c.Status), c.Reason, c.Message, c.LastTransitionTime))
	}

	return &NodeRecord{
		Name:           orDefault(node.Name, UnknownName),
		Roles:          k8sutil.NodeRoles(labels),
		Ready:          k8sutil.NodeIsReady(&node),
		Unschedulable:  node.Spec.Unschedulable,
		Conditions:     conditions,
		Labels:         labels,
		Taints:         k8sutil.NodeProblemTaints(&node),
		KubeletVersion: node.Status.NodeInfo.KubeletVersion,
		OSImage:        node.Status.NodeInfo.OSImage,
		Source:         doc.Source,
	}, nil
}

func SortNodes(nodes []NodeRecord) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
