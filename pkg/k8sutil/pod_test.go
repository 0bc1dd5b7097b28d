package k8sutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
)

func TestGetPodStatusReason(t *testing.T) {
	tests := []struct {
		name string
		pod  *corev1.Pod
		want string
	}{
		{
			name: "running pod with completed init container",
			want: "Running",
			pod: &corev1.Pod{
				Spec: corev1.PodSpec{InitContainers: []corev1.Container{{Name: "init"}}},
				Status: corev1.PodStatus{
					Phase: corev1.PodRunning,
					InitContainerStatuses: []corev1.ContainerStatus{
						{
							Name:  "init",
							State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 0, Reason: "Completed"}},
						},
					},
					ContainerStatuses: []corev1.ContainerStatus{
						{
							Name:  "web",
							Ready: true,
							State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}},
						},
					},
				},
			},
		},
		{
			name: "crash looping container",
			want: "CrashLoopBackOff",
			pod: &corev1.Pod{
				Status: corev1.PodStatus{
					Phase: corev1.PodRunning,
					ContainerStatuses: []corev1.ContainerStatus{
						{
							Name:         "web",
							RestartCount: 12,
							State:        corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"}},
						},
					},
				},
			},
		},
		{
			name: "failed init container",
			want: "Init:ExitCode:1",
			pod: &corev1.Pod{
				Spec: corev1.PodSpec{InitContainers: []corev1.Container{{Name: "init"}}},
				Status: corev1.PodStatus{
					Phase: corev1.PodPending,
					InitContainerStatuses: []corev1.ContainerStatus{
						{
							Name:  "init",
							State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 1}},
						},
					},
				},
			},
		},
		{
			name: "evicted pod",
			want: "Evicted",
			pod: &corev1.Pod{
				Status: corev1.PodStatus{Phase: corev1.PodFailed, Reason: "Evicted"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.want, GetPodStatusReason(tt.pod))
		})
	}
}

func TestPodReadiness(t *testing.T) {
	pod := &corev1.Pod{}
	assert.Equal(t, corev1.ConditionUnknown, PodReadiness(pod))

	pod.Status.Conditions = []corev1.PodCondition{
		{Type: corev1.PodScheduled, Status: corev1.ConditionTrue},
		{Type: corev1.PodReady, Status: corev1.ConditionFalse},
	}
	assert.Equal(t, corev1.ConditionFalse, PodReadiness(pod))
}

func TestContainerState(t *testing.T) {
	state, reason, _, code := ContainerState(corev1.ContainerStatus{
		State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{Reason: "OOMKilled", ExitCode: 137}},
	})
	assert.Equal(t, ContainerStateTerminated, state)
	assert.Equal(t, "OOMKilled", reason)
	assert.Equal(t, int32(137), code)

	state, _, _, _ = ContainerState(corev1.ContainerStatus{})
	assert.Equal(t, ContainerStateUnknown, state)
}
