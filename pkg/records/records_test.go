package records

import (
	"testing"
	"time"

	"github.com/replicatedhq/mustgather/pkg/decode"
	"github.com/replicatedhq/mustgather/pkg/k8sutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

func docFromYAML(t *testing.T, namespace, data string) decode.Document {
	t.Helper()

	obj := map[string]interface{}{}
	require.NoError(t, yaml.Unmarshal([]byte(data), &obj))
	normalizeNumbers(obj)
	return decode.Document{Object: obj, Source: "test.yaml", Namespace: namespace}
}

// normalizeNumbers turns the float64 values produced by sigs.k8s.io/yaml into
// int64, matching what the decoder hands to builders.
func normalizeNumbers(v interface{}) {
	switch typed := v.(type) {
	case map[string]interface{}:
		for k, item := range typed {
			if f, ok := item.(float64); ok && f == float64(int64(f)) {
				typed[k] = int64(f)
				continue
			}
			normalizeNumbers(item)
		}
	case []interface{}:
		for i, item := range typed {
			if f, ok := item.(float64); ok && f == float64(int64(f)) {
				typed[i] = int64(f)
				continue
			}
			normalizeNumbers(item)
		}
	}
}

func TestBuildClusterInstall(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantFailed bool
		wantReason string
	}{
		{
			name: "install failed with message",
			data: `
metadata:
  name: spoke
  namespace: spoke-ns
spec:
  clusterDeploymentRef:
    name: spoke
  provisionRequirements:
    controlPlaneAgents: 3
status:
  conditions:
  - type: Completed
    status: "False"
    reason: InstallationFailed
    message: timeout
`,
			wantFailed: true,
			wantReason: "timeout",
		},
		{
			name: "in progress",
			data: `
metadata:
  name: spoke
status:
  conditions:
  - type: Completed
    status: "False"
    reason: InstallationInProgress
    message: installing
`,
		},
		{
			name: "first matching condition wins",
			data: `
metadata:
  name: spoke
status:
  conditions:
  - type: Completed
    status: "False"
    reason: InstallationFailed
    message: first
  - type: Completed
    status: "False"
    reason: InstallationFailed
    message: second
`,
			wantFailed: true,
			wantReason: "first",
		},
		{
			name:       "no conditions",
			data:       "metadata:\n  name: spoke\n",
			wantFailed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildClusterInstall(docFromYAML(t, "hint-ns", tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFailed, got.Failed)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.NotNil(t, got.Conditions)
		})
	}
}

func TestBuildClusterInstallDefaults(t *testing.T) {
	got, err := BuildClusterInstall(docFromYAML(t, "hint-ns", "metadata: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, UnknownName, got.Name)
	assert.Equal(t, "hint-ns", got.Namespace)
	assert.Equal(t, UnknownName, got.ClusterDeploymentName)
	assert.Empty(t, got.Conditions)
}

func TestBuildAgent(t *testing.T) {
	got, err := BuildAgent(docFromYAML(t, "", `
metadata:
  name: host-1
  namespace: spoke-ns
  creationTimestamp: "2024-02-01T10:00:00Z"
spec:
  approved: true
  role: auto-assign
  clusterDeploymentName:
    name: spoke
    namespace: spoke-ns
status:
  role: master
  inventory:
    hostname: master-0
  validationsInfo:
    hardware:
    - id: has-enough-ram
      status: failure
    - id: has-min-cpu-cores
      status: success
    network:
    - id: ntp-synced
      status: failure
      message: "Host couldn't synchronize with any NTP server"
  conditions:
  - type: Installed
    status: "False"
    reason: InstallationFailed
    message: "Host failed to reboot, contact admin@example.com"
`))
	require.NoError(t, err)

	assert.Equal(t, Key{Namespace: "spoke-ns", Name: "host-1"}, got.Key())
	assert.Equal(t, "spoke", got.ClusterDeploymentName)
	assert.Equal(t, "spoke-ns", got.ClusterDeploymentNamespace)
	assert.True(t, got.Approved)
	assert.Equal(t, "master", got.Role)
	assert.Equal(t, "master-0", got.Hostname)
	assert.Equal(t, 2, got.ValidationFailures)
	assert.Equal(t, []string{
		"hardware/has-enough-ram",
		"network/ntp-synced: Host couldn't synchronize with any NTP server",
	}, got.FailedValidations)
	assert.Equal(t, "failed: InstallationFailed", got.Status)
	assert.True(t, got.Failed)
	assert.Equal(t, "Host failed to reboot, contact [REDACTED_EMAIL]", got.Reason)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), got.CreationTimestamp)
}

func TestAgentStatus(t *testing.T) {
	tests := []struct {
		name       string
		conditions []Condition
		want       string
	}{
		{name: "no conditions", want: "unknown"},
		{
			name:       "installed",
			conditions: []Condition{{Type: "SpecSynced", Status: "True"}, {Type: "Installed", Status: "True"}},
			want:       "installed",
		},
		{
			name:       "requirements not met",
			conditions: []Condition{{Type: "RequirementsMet", Status: "False", Reason: "AgentIsNotApproved"}},
			want:       "requirements_not_met: AgentIsNotApproved",
		},
		{
			name:       "validation failed",
			conditions: []Condition{{Type: "Validated", Status: "False", Reason: "ValidationsFailing"}},
			want:       "validation_failed: ValidationsFailing",
		},
		{
			name:       "failure reason",
			conditions: []Condition{{Type: "SpecSynced", Status: "False", Reason: "BackendError"}},
			want:       "failed: BackendError",
		},
		{
			name:       "falls back to last condition",
			conditions: []Condition{{Type: "SpecSynced", Status: "True"}, {Type: "Connected", Status: "True"}},
			want:       "Connected: True",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgentStatus(tt.conditions))
		})
	}

	assert.True(t, AgentStatusFailed("validation_failed: ValidationsFailing"))
	assert.True(t, AgentStatusFailed("failed: BackendError"))
	assert.False(t, AgentStatusFailed("installed"))
}

func TestBuildAgentMalformed(t *testing.T) {
	_, err := BuildAgent(docFromYAML(t, "", "metadata:\n  name: host-1\nstatus:\n  conditions: not-a-list\n"))
	require.Error(t, err)

	_, err = BuildAgent(docFromYAML(t, "", "metadata:\n  name: host-1\nspec:\n  approved: \"yes\"\n"))
	require.Error(t, err)
}

func TestBuildNode(t *testing.T) {
	got, err := BuildNode(docFromYAML(t, "", `
metadata:
  name: master-0
  labels:
    node-role.kubernetes.io/master: ""
    zone: us-east
spec:
  taints:
  - key: node.kubernetes.io/not-ready
    effect: NoSchedule
status:
  nodeInfo:
    kubeletVersion: v1.27.6
  conditions:
  - type: MemoryPressure
    status: "False"
  - type: Ready
    status: "False"
    reason: KubeletNotReady
    message: PLEG is not healthy
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"master"}, got.Roles)
	assert.False(t, got.Ready)
	assert.Equal(t, "us-east", got.Labels["zone"])
	assert.Equal(t, []string{k8sutil.NotReadyTaint}, got.Taints)
	assert.Equal(t, "v1.27.6", got.KubeletVersion)

	ready, ok := FindCondition(got.Conditions, "Ready")
	require.True(t, ok)
	assert.Equal(t, "KubeletNotReady", ready.Reason)
}

func TestBuildNodeDefaults(t *testing.T) {
	got, err := BuildNode(docFromYAML(t, "", "metadata: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, UnknownName, got.Name)
	assert.Equal(t, []string{"worker"}, got.Roles)
	assert.False(t, got.Ready)
	assert.NotNil(t, got.Labels)
	assert.Empty(t, got.Conditions)
}

func TestBuildMachineConfigPool(t *testing.T) {
	got, err := BuildMachineConfigPool(docFromYAML(t, "", `
metadata:
  name: worker
  generation: 4
spec:
  nodeSelector:
    matchLabels:
      node-role.kubernetes.io/worker: ""
    matchExpressions:
    - key: zone
      operator: In
      values: [us-east]
status:
  machineCount: 5
  readyMachineCount: 5
  configuration:
    name: rendered-worker-1234
  conditions:
  - type: Degraded
    status: "False"
`))
	require.NoError(t, err)

	assert.Equal(t, int64(5), got.MachineCount)
	assert.Equal(t, int64(5), got.UpdatedMachineCount, "missing updatedMachineCount defaults to machineCount")
	assert.Equal(t, int64(4), got.Generation)
	assert.Equal(t, "rendered-worker-1234", got.RenderedConfig)
	require.NotNil(t, got.NodeSelector)
	assert.Equal(t, map[string]string{"node-role.kubernetes.io/worker": ""}, got.NodeSelector.MatchLabels)
	require.Len(t, got.NodeSelector.MatchExpressions, 1)
	assert.Equal(t, metav1.LabelSelectorOpIn, got.NodeSelector.MatchExpressions[0].Operator)
	assert.Equal(t, PoolHealthy, got.State())
}

func TestMachineConfigPoolState(t *testing.T) {
	tests := []struct {
		name       string
		conditions []Condition
		want       PoolState
	}{
		{name: "no conditions", want: PoolHealthy},
		{name: "updating", conditions: []Condition{{Type: "Updating", Status: "True"}}, want: PoolUpdating},
		{name: "degraded", conditions: []Condition{{Type: "Degraded", Status: "True"}}, want: PoolDegraded},
		{
			name:       "degraded beats updating",
			conditions: []Condition{{Type: "Updating", Status: "True"}, {Type: "Degraded", Status: "True"}},
			want:       PoolDegraded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MachineConfigPoolRecord{Conditions: tt.conditions}.State())
		})
	}
}

func TestBuildPod(t *testing.T) {
	got, err := BuildPod(docFromYAML(t, "ns1", `
metadata:
  name: web-1
spec:
  nodeName: worker-0
status:
  phase: Running
  conditions:
  - type: Ready
    status: "False"
  containerStatuses:
  - name: app
    restartCount: 12
    ready: false
    state:
      waiting:
        reason: CrashLoopBackOff
  - name: sidecar
    restartCount: 1
    ready: true
    state:
      running: {}
`))
	require.NoError(t, err)

	assert.Equal(t, Key{Namespace: "ns1", Name: "web-1"}, got.Key())
	assert.Equal(t, corev1.ConditionFalse, got.Ready)
	assert.Equal(t, int32(13), got.RestartCount)
	assert.Equal(t, "worker-0", got.NodeName)
	assert.Equal(t, "CrashLoopBackOff", got.StatusReason)
	require.Len(t, got.Containers, 2)
	assert.Equal(t, k8sutil.ContainerStateWaiting, got.Containers[0].State)
	assert.Equal(t, k8sutil.ContainerStateRunning, got.Containers[1].State)
}

func TestBuildPodDefaults(t *testing.T) {
	got, err := BuildPod(docFromYAML(t, "ns1", "metadata:\n  name: bare\n"))
	require.NoError(t, err)

	assert.Equal(t, "Unknown", got.Phase)
	assert.Equal(t, corev1.ConditionUnknown, got.Ready)
	assert.NotNil(t, got.Containers)
}

func TestBuildEvent(t *testing.T) {
	got, err := BuildEvent(docFromYAML(t, "", `
metadata:
  name: web-1.17a
  namespace: ns1
type: Warning
reason: BackOff
message: Back-off restarting failed container
count: 7
involvedObject:
  kind: Pod
  name: web-1
lastTimestamp: "2024-02-01T10:00:00Z"
source:
  component: kubelet
`))
	require.NoError(t, err)

	assert.True(t, got.IsWarning())
	assert.Equal(t, ObjectRef{Kind: "Pod", Name: "web-1", Namespace: "ns1"}, got.InvolvedObject)
	assert.Equal(t, int32(7), got.Count)
	assert.Equal(t, "kubelet", got.SourceComponent)
}

func TestBuildClusterOperator(t *testing.T) {
	got, err := BuildClusterOperator(docFromYAML(t, "", `
metadata:
  name: authentication
status:
  versions:
  - name: oauth-openshift
    version: 4.14.1_openshift
  - name: operator
    version: 4.14.1
  conditions:
  - type: Available
    status: "True"
  - type: Degraded
    status: "True"
    reason: OAuthServerRouteEndpointAccessibleController_SyncError
    message: "route check failed for oauth-openshift.apps.demo.example.com"
`))
	require.NoError(t, err)

	assert.Equal(t, "4.14.1", got.Version)
	assert.True(t, got.Available)
	assert.True(t, got.Degraded)
	assert.False(t, got.Progressing)

	degraded, ok := FindCondition(got.Conditions, "Degraded")
	require.True(t, ok)
	assert.Equal(t, "route check failed for [REDACTED_HOSTNAME]", degraded.Message)
}

func TestClusterInfo(t *testing.T) {
	info := ClusterInfo{}
	require.NoError(t, info.ApplyClusterVersion(docFromYAML(t, "", `
metadata:
  name: version
spec:
  clusterID: 0b7c1c9e-1111-2222-3333-444455556666
  channel: stable-4.14
status:
  history:
  - state: Partial
    version: 4.14.2
  - state: Completed
    version: 4.14.1
  conditions:
  - type: Failing
    status: "True"
`)))
	require.NoError(t, info.ApplyInfrastructure(docFromYAML(t, "", `
metadata:
  name: cluster
status:
  infrastructureName: demo-x7k2p
  platformStatus:
    type: BareMetal
`)))

	assert.Equal(t, "4.14.1", info.Version)
	assert.Equal(t, "stable-4.14", info.Channel)
	assert.True(t, info.Failing)
	assert.Equal(t, "BareMetal", info.Platform)
	assert.Equal(t, "demo-x7k2p", info.InfrastructureName)
}
