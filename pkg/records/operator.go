package records

import (
	"sort"

	configv1 "github.com/openshift/api/config/v1"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/decode"
	"github.com/replicatedhq/mustgather/pkg/redact"
	"k8s.io/apimachinery/pkg/runtime"
)

var (
	ClusterOperatorTarget = decode.Target{Kind: KindClusterOperator, APIVersionPrefix: "config.openshift.io"}
	ClusterVersionTarget  = decode.Target{Kind: KindClusterVersion, APIVersionPrefix: "config.openshift.io"}
	InfrastructureTarget  = decode.Target{Kind: KindInfrastructure, APIVersionPrefix: "config.openshift.io"}
)

type ClusterOperatorRecord struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version,omitempty" yaml:"version,omitempty"`
	Available   bool        `json:"available" yaml:"available"`
	Progressing bool        `json:"progressing" yaml:"progressing"`
	Degraded    bool        `json:"degraded" yaml:"degraded"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	Source      string      `json:"source" yaml:"source"`
}

func (o ClusterOperatorRecord) Kind() string { return KindClusterOperator }
func (o ClusterOperatorRecord) Key() Key     { return Key{Name: o.Name} }

func clusterConditions(in []configv1.ClusterOperatorStatusCondition) []Condition {
	out := make([]Condition, 0, len(in))
	for _, c := range in {
		out = append(out, newCondition(string(c.Type), string(c.Status), c.Reason, c.Message, c.LastTransitionTime))
	}
	return out
}

// BuildClusterOperator projects a ClusterOperator document. Version is the
// version reported for the "operator" operand.
func BuildClusterOperator(doc decode.Document) (*ClusterOperatorRecord, error) {
	var co configv1.ClusterOperator
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(doc.Object, &co); err != nil {
		return nil, errors.Wrap(err, "failed to convert clusteroperator")
	}

	conditions := clusterConditions(co.Status.Conditions)
	record := &ClusterOperatorRecord{
		Name:        orDefault(co.Name, UnknownName),
		Available:   IsConditionTrue(conditions, string(configv1.OperatorAvailable)),
		Progressing: IsConditionTrue(conditions, string(configv1.OperatorProgressing)),
		Degraded:    IsConditionTrue(conditions, string(configv1.OperatorDegraded)),
		Conditions:  conditions,
		Source:      doc.Source,
	}
	for _, v := range co.Status.Versions {
		if v.Name == "operator" {
			record.Version = v.Version
			break
		}
	}
	return record, nil
}

func SortClusterOperators(operators []ClusterOperatorRecord) {
	sort.SliceStable(operators, func(i, j int) bool { return operators[i].Name < operators[j].Name })
}

// ClusterInfo describes the cluster a bundle was gathered from.
type ClusterInfo struct {
	Version            string      `json:"version,omitempty" yaml:"version,omitempty"`
	ClusterID          string      `json:"clusterID,omitempty" yaml:"clusterID,omitempty"`
	Channel            string      `json:"channel,omitempty" yaml:"channel,omitempty"`
	Platform           string      `json:"platform,omitempty" yaml:"platform,omitempty"`
	InfrastructureName string      `json:"infrastructureName,omitempty" yaml:"infrastructureName,omitempty"`
	APIServerURL       string      `json:"apiServerURL,omitempty" yaml:"apiServerURL,omitempty"`
	Failing            bool        `json:"failing" yaml:"failing"`
	Conditions         []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// ApplyClusterVersion fills version fields from a ClusterVersion document.
// The desired version wins; otherwise the newest completed history entry is used.
func (c *ClusterInfo) ApplyClusterVersion(doc decode.Document) error {
	var cv configv1.ClusterVersion
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(doc.Object, &cv); err != nil {
		return errors.Wrap(err, "failed to convert clusterversion")
	}

	c.ClusterID = string(cv.Spec.ClusterID)
	c.Channel = cv.Spec.Channel
	c.Version = cv.Status.Desired.Version
	if c.Version == "" {
		for _, h := range cv.Status.History {
			if h.State == configv1.CompletedUpdate {
				c.Version = h.Version
				break
			}
		}
	}
	c.Conditions = clusterConditions(cv.Status.Conditions)
	c.Failing = IsConditionTrue(c.Conditions, "Failing")
	return nil
}

// ApplyInfrastructure fills platform fields from an Infrastructure document.
func (c *ClusterInfo) ApplyInfrastructure(doc decode.Document) error {
	var infra configv1.Infrastructure
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(doc.Object, &infra); err != nil {
		return errors.Wrap(err, "failed to convert infrastructure")
	}

	c.InfrastructureName = infra.Status.InfrastructureName
	c.APIServerURL = redact.Sanitize(infra.Status.APIServerURL)
	if infra.Status.PlatformStatus != nil {
		c.Platform = string(infra.Status.PlatformStatus.Type)
	}
	if c.Platform == "" {
		c.Platform = string(infra.Status.Platform) //nolint:staticcheck
	}
	return nil
}
