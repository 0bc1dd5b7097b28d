package records

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/decode"
	"github.com/replicatedhq/mustgather/pkg/k8sutil"
	"github.com/replicatedhq/mustgather/pkg/redact"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

var (
	PodTarget   = decode.Target{Kind: KindPod, APIVersionPrefix: "v1"}
	EventTarget = decode.Target{Kind: KindEvent, APIVersionPrefix: "v1"}
)

const EventTypeWarning = corev1.EventTypeWarning

type ContainerRecord struct {
	Name         string                     `json:"name" yaml:"name"`
	Image        string                     `json:"image,omitempty" yaml:"image,omitempty"`
	Init         bool                       `json:"init,omitempty" yaml:"init,omitempty"`
	Ready        bool                       `json:"ready" yaml:"ready"`
	RestartCount int32                      `json:"restartCount" yaml:"restartCount"`
	State        k8sutil.ContainerStateName `json:"state" yaml:"state"`
	StateReason  string                     `json:"stateReason,omitempty" yaml:"stateReason,omitempty"`
	StateMessage string                     `json:"stateMessage,omitempty" yaml:"stateMessage,omitempty"`
	ExitCode     int32                      `json:"exitCode,omitempty" yaml:"exitCode,omitempty"`
}

type PodRecord struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Phase     string `json:"phase" yaml:"phase"`
	// Ready is the status of the Ready condition: True, False or Unknown.
	Ready corev1.ConditionStatus `json:"ready" yaml:"ready"`
	// RestartCount sums the restarts of all regular containers.
	RestartCount int32             `json:"restartCount" yaml:"restartCount"`
	Containers   []ContainerRecord `json:"containers" yaml:"containers"`
	NodeName     string            `json:"nodeName,omitempty" yaml:"nodeName,omitempty"`
	StatusReason string            `json:"statusReason" yaml:"statusReason"`
	Source       string            `json:"source" yaml:"source"`
}

func (p PodRecord) Kind() string { return KindPod }
func (p PodRecord) Key() Key     { return Key{Namespace: p.Namespace, Name: p.Name} }

func BuildPod(doc decode.Document) (*PodRecord, error) {
	var pod corev1.Pod
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(doc.Object, &pod); err != nil {
		return nil, errors.Wrap(err, "failed to convert pod")
	}

	record := &PodRecord{
		Name:         orDefault(pod.Name, UnknownName),
		Namespace:    orDefault(pod.Namespace, doc.Namespace),
		Phase:        orDefault(string(pod.Status.Phase), string(corev1.PodUnknown)),
		Ready:        k8sutil.PodReadiness(&pod),
		Containers:   make([]ContainerRecord, 0, len(pod.Status.InitContainerStatuses)+len(pod.Status.ContainerStatuses)),
		NodeName:     pod.Spec.NodeName,
		StatusReason: k8sutil.GetPodStatusReason(&pod),
		Source:       doc.Source,
	}

	for _, status := range pod.Status.InitContainerStatuses {
		record.Containers = append(record.Containers, containerRecord(status, true))
	}
	for _, status := range pod.Status.ContainerStatuses {
		record.Containers = append(record.Containers, containerRecord(status, false))
		record.RestartCount += status.RestartCount
	}
	return record, nil
}

func containerRecord(status corev1.ContainerStatus, init bool) ContainerRecord {
	state, reason, message, exitCode := k8sutil.ContainerState(status)
	return ContainerRecord{
		Name:         status.Name,
		Image:        status.Image,
		Init:         init,
		Ready:        status.Ready,
		RestartCount: status.RestartCount,
		State:        state,
		StateReason:  reason,
		StateMessage: redact.Sanitize(message),
		ExitCode:     exitCode,
	}
}

// ObjectRef is the object an event is about.
type ObjectRef struct {
	Kind      string `json:"kind" yaml:"kind"`
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

type EventRecord struct {
	Name            string    `json:"name" yaml:"name"`
	Namespace       string    `json:"namespace" yaml:"namespace"`
	Type            string    `json:"type" yaml:"type"`
	Reason          string    `json:"reason" yaml:"reason"`
	Message         string    `json:"message" yaml:"message"`
	InvolvedObject  ObjectRef `json:"involvedObject" yaml:"involvedObject"`
	Count           int32     `json:"count" yaml:"count"`
	FirstTimestamp  time.Time `json:"firstTimestamp,omitempty" yaml:"firstTimestamp,omitempty"`
	LastTimestamp   time.Time `json:"lastTimestamp,omitempty" yaml:"lastTimestamp,omitempty"`
	SourceComponent string    `json:"sourceComponent,omitempty" yaml:"sourceComponent,omitempty"`
	Source          string    `json:"source" yaml:"source"`
}

func (e EventRecord) Kind() string { return KindEvent }
func (e EventRecord) Key() Key     { return Key{Namespace: e.Namespace, Name: e.Name} }

func (e EventRecord) IsWarning() bool {
	return e.Type == EventTypeWarning
}

// BuildEvent projects an Event document. The involved object's namespace
// falls back to the event's own namespace.
func BuildEvent(doc decode.Document) (*EventRecord, error) {
	var event corev1.Event
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(doc.Object, &event); err != nil {
		return nil, errors.Wrap(err, "failed to convert event")
	}

	namespace := orDefault(event.Namespace, doc.Namespace)
	last := event.LastTimestamp.Time
	if last.IsZero() {
		last = event.EventTime.Time
	}

	return &EventRecord{
		Name:      orDefault(event.Name, UnknownName),
		Namespace: namespace,
		Type:      orDefault(event.Type, corev1.EventTypeNormal),
		Reason:    event.Reason,
		Message:   redact.Sanitize(event.Message),
		InvolvedObject: ObjectRef{
			Kind:      event.InvolvedObject.Kind,
			Name:      event.InvolvedObject.Name,
			Namespace: orDefault(event.InvolvedObject.Namespace, namespace),
		},
		Count:           event.Count,
		FirstTimestamp:  event.FirstTimestamp.Time,
		LastTimestamp:   last,
		SourceComponent: event.Source.Component,
		Source:          doc.Source,
	}, nil
}

func SortPods(pods []PodRecord) {
	sort.SliceStable(pods, func(i, j int) bool { return pods[i].Key().Less(pods[j].Key()) })
}

// SortEvents orders events by namespace, name and last timestamp.
func SortEvents(events []EventRecord) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Key() != events[j].Key() {
			return events[i].Key().Less(events[j].Key())
		}
		return events[i].LastTimestamp.Before(events[j].LastTimestamp)
	})
}
