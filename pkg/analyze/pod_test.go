package analyzer

import (
	"testing"

	"github.com/replicatedhq/mustgather/pkg/k8sutil"
	"github.com/replicatedhq/mustgather/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
)

func TestAnalyzePod(t *testing.T) {
	running := func(name string, restarts int32) records.ContainerRecord {
		return records.ContainerRecord{Name: name, Ready: true, RestartCount: restarts, State: k8sutil.ContainerStateRunning}
	}
	podEvent := func(eventType, reason, message string) records.EventRecord {
		return records.EventRecord{
			Type:           eventType,
			Reason:         reason,
			Message:        message,
			InvolvedObject: records.ObjectRef{Kind: "Pod", Name: "web-1", Namespace: "ns1"},
		}
	}

	tests := []struct {
		name                string
		pod                 records.PodRecord
		events              []records.EventRecord
		wantIssues          []string
		wantContainerIssues []string
		wantWarnings        []string
	}{
		{
			name: "healthy",
			pod:  records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue, Containers: []records.ContainerRecord{running("web", 0)}},
		},
		{
			name:         "few restarts are warnings",
			pod:          records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue, RestartCount: 5, Containers: []records.ContainerRecord{running("web", 5)}},
			wantWarnings: []string{"Pod has restarted 5 times"},
		},
		{
			name:       "restarts above the pod threshold",
			pod:        records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue, RestartCount: 6, Containers: []records.ContainerRecord{running("web", 6)}},
			wantIssues: []string{"Pod has restarted 6 times"},
		},
		{
			name: "readiness unknown is not an issue",
			pod:  records.PodRecord{Phase: "Running", Ready: corev1.ConditionUnknown},
		},
		{
			name: "completed pods are not flagged as not ready",
			pod:  records.PodRecord{Phase: "Succeeded", Ready: corev1.ConditionFalse},
		},
		{
			name:       "pending",
			pod:        records.PodRecord{Phase: "Pending", Ready: corev1.ConditionFalse, StatusReason: "ContainerCreating"},
			wantIssues: []string{"Pod is not ready", "Pod is in phase Pending (ContainerCreating)"},
		},
		{
			name: "failed with crashed container",
			pod: records.PodRecord{Phase: "Failed", Ready: corev1.ConditionFalse, StatusReason: "Failed", Containers: []records.ContainerRecord{
				{Name: "web", State: k8sutil.ContainerStateTerminated, StateReason: "Error", ExitCode: 1},
			}},
			wantIssues:          []string{"Pod is not ready", "Pod is in phase Failed"},
			wantContainerIssues: []string{"Container web terminated: Error (exit code 1)"},
		},
		{
			name: "waiting container",
			pod: records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue, Containers: []records.ContainerRecord{
				{Name: "web", State: k8sutil.ContainerStateWaiting, StateReason: "CrashLoopBackOff", StateMessage: "back-off 5m0s"},
			}},
			wantContainerIssues: []string{"Container web is waiting: CrashLoopBackOff back-off 5m0s"},
		},
		{
			name: "completed init container is fine",
			pod: records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue, Containers: []records.ContainerRecord{
				{Name: "setup", Init: true, State: k8sutil.ContainerStateTerminated, StateReason: "Completed"},
				running("web", 0),
			}},
		},
		{
			name: "container restarts above the container threshold",
			pod: records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue, Containers: []records.ContainerRecord{
				{Name: "setup", Init: true, RestartCount: 11, State: k8sutil.ContainerStateTerminated, StateReason: "Completed"},
			}},
			wantContainerIssues: []string{"Init container setup has restarted 11 times"},
		},
		{
			name: "events",
			pod:  records.PodRecord{Phase: "Running", Ready: corev1.ConditionTrue},
			events: []records.EventRecord{
				podEvent("Warning", "FailedMount", "secret not found"),
				podEvent("Warning", "BackOff", "restarting failed container"),
				podEvent("Normal", "Pulled", "image pulled"),
			},
			wantIssues:   []string{"Event FailedMount: secret not found"},
			wantWarnings: []string{"Event BackOff: restarting failed container"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pod.Name = "web-1"
			tt.pod.Namespace = "ns1"
			report := AnalyzePod(tt.pod, tt.events)

			want := func(v []string) []string {
				if v == nil {
					return []string{}
				}
				return v
			}
			assert.Equal(t, want(tt.wantIssues), report.Issues)
			assert.Equal(t, want(tt.wantContainerIssues), report.ContainerIssues)
			assert.Equal(t, want(tt.wantWarnings), report.Warnings)
		})
	}
}

func TestAnalyzePodsSeverity(t *testing.T) {
	reports := []PodReport{
		{Name: "failed", Namespace: "ns", Phase: "Failed", Issues: []string{"Pod is in phase Failed"}},
		{Name: "not-ready", Namespace: "ns", Phase: "Running", Issues: []string{"Pod is not ready"}},
		{Name: "restarts", Namespace: "ns", Phase: "Running", Issues: []string{"Pod has restarted 6 times"}, NodeName: "worker-0"},
		{Name: "warned", Namespace: "ns", Phase: "Running", Warnings: []string{"Pod has restarted 1 times"}},
	}

	issues, err := (&AnalyzePods{reports: reports}).Analyze(&Input{}, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, issues, 4)

	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.True(t, issues[0].Degraded())
	assert.Equal(t, SeverityCritical, issues[1].Severity)
	assert.False(t, issues[1].Degraded())
	assert.Equal(t, SeverityWarning, issues[2].Severity)
	assert.Equal(t, []string{"pod/ns/restarts", "node/worker-0"}, issues[2].AffectedEntities)
	assert.Equal(t, SeverityInfo, issues[3].Severity)
	assert.Equal(t, "Pod ns/warned has warnings", issues[3].Title)
}
