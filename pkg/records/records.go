// Package records projects decoded must-gather documents into typed,
// fully defaulted records. Every builder applies its defaults once so that
// callers never need to check for missing fields.
package records

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/redact"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// UnknownName is used for objects without metadata.name.
const UnknownName = "unknown"

const (
	KindAgent               = "Agent"
	KindAgentClusterInstall = "AgentClusterInstall"
	KindNode                = "Node"
	KindMachineConfigPool   = "MachineConfigPool"
	KindPod                 = "Pod"
	KindEvent               = "Event"
	KindClusterOperator     = "ClusterOperator"
	KindClusterVersion      = "ClusterVersion"
	KindInfrastructure      = "Infrastructure"
)

// Key identifies a record by weak name/namespace identity. Namespace is
// empty for cluster-scoped kinds.
type Key struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name      string `json:"name" yaml:"name"`
}

func (k Key) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "/" + k.Name
}

// Less orders keys by namespace, then name.
func (k Key) Less(o Key) bool {
	if k.Namespace != o.Namespace {
		return k.Namespace < o.Namespace
	}
	return k.Name < o.Name
}

// Record is implemented by every typed record.
type Record interface {
	Kind() string
	Key() Key
}

// Condition is a status condition common to all kinds. Message is sanitized.
type Condition struct {
	Type               string    `json:"type" yaml:"type"`
	Status             string    `json:"status" yaml:"status"`
	Reason             string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message            string    `json:"message,omitempty" yaml:"message,omitempty"`
	LastTransitionTime time.Time `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`
}

func (c Condition) IsTrue() bool {
	return strings.EqualFold(c.Status, "True")
}

func (c Condition) IsFalse() bool {
	return strings.EqualFold(c.Status, "False")
}

// FindCondition returns the first condition of the given type.
func FindCondition(conditions []Condition, condType string) (Condition, bool) {
	for _, c := range conditions {
		if c.Type == condType {
			return c, true
		}
	}
	return Condition{}, false
}

// IsConditionTrue reports whether the first condition of the given type has status True.
func IsConditionTrue(conditions []Condition, condType string) bool {
	c, ok := FindCondition(conditions, condType)
	return ok && c.IsTrue()
}

const installationFailed = "InstallationFailed"

// installFailure looks for the first condition of condType with status False
// and reason InstallationFailed. The reported reason is the condition's
// message, falling back to its reason.
func installFailure(conditions []Condition, condType string) (bool, string) {
	for _, c := range conditions {
		if c.Type != condType || !c.IsFalse() || c.Reason != installationFailed {
			continue
		}
		if c.Message != "" {
			return true, c.Message
		}
		return true, c.Reason
	}
	return false, ""
}

func newCondition(condType, status, reason, message string, transition metav1.Time) Condition {
	if status == "" {
		status = "Unknown"
	}
	return Condition{
		Type:               condType,
		Status:             status,
		Reason:             reason,
		Message:            redact.Sanitize(message),
		LastTransitionTime: transition.Time,
	}
}

// fields reads nested values from an open document and keeps the first type
// error it runs into, so a builder can read everything and check once.
type fields struct {
	obj map[string]interface{}
	err error
}

func (f *fields) record(err error, path []string) {
	if err != nil && f.err == nil {
		f.err = errors.Wrapf(err, "field %s", strings.Join(path, "."))
	}
}

func (f *fields) str(path ...string) string {
	v, _, err := unstructured.NestedString(f.obj, path...)
	f.record(err, path)
	return v
}

func (f *fields) boolean(path ...string) bool {
	v, _, err := unstructured.NestedBool(f.obj, path...)
	f.record(err, path)
	return v
}

func (f *fields) integer(path ...string) (int64, bool) {
	v, found, err := unstructured.NestedInt64(f.obj, path...)
	f.record(err, path)
	return v, found && err == nil
}

func (f *fields) slice(path ...string) []interface{} {
	v, _, err := unstructured.NestedSlice(f.obj, path...)
	f.record(err, path)
	return v
}

func (f *fields) object(path ...string) map[string]interface{} {
	v, _, err := unstructured.NestedMap(f.obj, path...)
	f.record(err, path)
	return v
}

func (f *fields) stringMap(path ...string) map[string]string {
	v, _, err := unstructured.NestedStringMap(f.obj, path...)
	f.record(err, path)
	if v == nil {
		v = map[string]string{}
	}
	return v
}

func (f *fields) timestamp(path ...string) time.Time {
	s := f.str(path...)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// conditions reads status.conditions. Entries that are not objects make the
// document malformed.
func (f *fields) conditions() []Condition {
	raw := f.slice("status", "conditions")
	out := make([]Condition, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			f.record(errors.Errorf("entry %d is not an object", i), []string{"status", "conditions"})
			continue
		}
		c := &fields{obj: m}
		out = append(out, newCondition(
			c.str("type"),
			c.str("status"),
			c.str("reason"),
			c.str("message"),
			metav1.NewTime(c.timestamp("lastTransitionTime")),
		))
		f.record(c.err, []string{"status", "conditions"})
	}
	return out
}

// metadata returns name, namespace and creation time with defaults applied.
// nsHint is used when metadata.namespace is empty.
func (f *fields) metadata(nsHint string) (string, string, time.Time) {
	f.object("metadata")
	name := f.str("metadata", "name")
	if name == "" {
		name = UnknownName
	}
	namespace := f.str("metadata", "namespace")
	if namespace == "" {
		namespace = nsHint
	}
	return name, namespace, f.timestamp("metadata", "creationTimestamp")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
