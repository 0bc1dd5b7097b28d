package analyzer

import (
	"testing"
	"time"

	"github.com/replicatedhq/mustgather/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func poolTitles(t *testing.T, in *Input, opts Options) map[string]Severity {
	t.Helper()

	issues, err := (&AnalyzeMachineConfigPools{}).Analyze(in, opts.withDefaults())
	require.NoError(t, err)
	out := map[string]Severity{}
	for _, issue := range issues {
		out[issue.Title] = issue.Severity
	}
	return out
}

func TestAnalyzeMachineConfigPools(t *testing.T) {
	updatingSince := func(d time.Duration) records.MachineConfigPoolRecord {
		p := healthyPool("worker")
		p.Conditions = []records.Condition{{Type: "Updating", Status: "True", LastTransitionTime: testNow.Add(-d)}}
		return p
	}
	outdated := func(updated int64) records.MachineConfigPoolRecord {
		p := healthyPool("worker")
		p.UpdatedMachineCount = updated
		return p
	}
	unavailable := healthyPool("worker")
	unavailable.UnavailableMachineCount = 1

	tests := []struct {
		name string
		pool records.MachineConfigPoolRecord
		want map[string]Severity
	}{
		{name: "healthy", pool: healthyPool("worker"), want: map[string]Severity{}},
		{
			name: "updating past the limit",
			pool: updatingSince(45 * time.Minute),
			want: map[string]Severity{"Machine config pool worker has been updating for 45m": SeverityWarning},
		},
		{name: "updating within the limit", pool: updatingSince(10 * time.Minute), want: map[string]Severity{}},
		{
			name: "updating without transition time",
			pool: func() records.MachineConfigPoolRecord {
				p := healthyPool("worker")
				p.Conditions = []records.Condition{cond("Updating", "True")}
				return p
			}(),
			want: map[string]Severity{},
		},
		{
			name: "one machine behind",
			pool: outdated(4),
			want: map[string]Severity{"Machine config pool worker has 1 machines not updated": SeverityWarning},
		},
		{
			name: "two machines behind",
			pool: outdated(3),
			want: map[string]Severity{"Machine config pool worker has 2 machines not updated": SeverityWarning},
		},
		{
			name: "three machines behind",
			pool: outdated(2),
			want: map[string]Severity{"Machine config pool worker has 3 machines not updated": SeverityCritical},
		},
		{
			name: "unavailable machines",
			pool: unavailable,
			want: map[string]Severity{"Machine config pool worker has 1 unavailable machines": SeverityWarning},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Input{MachineConfigPools: []records.MachineConfigPoolRecord{tt.pool}}
			assert.Equal(t, tt.want, poolTitles(t, in, Options{Now: fixedClock}))
		})
	}
}

func TestAnalyzeMachineConfigPoolsStuckAfterOption(t *testing.T) {
	p := healthyPool("worker")
	p.Conditions = []records.Condition{{Type: "Updating", Status: "True", LastTransitionTime: testNow.Add(-10 * time.Minute)}}
	in := &Input{MachineConfigPools: []records.MachineConfigPoolRecord{p}}

	assert.Empty(t, poolTitles(t, in, Options{Now: fixedClock}))
	assert.Len(t, poolTitles(t, in, Options{Now: fixedClock, StuckUpdatingAfter: 5 * time.Minute}), 1)
}

func TestAnalyzeMachineConfigPoolsAffectedNodes(t *testing.T) {
	master := readyNode("master-0")
	master.Labels = map[string]string{"node-role.kubernetes.io/master": ""}

	degraded := healthyPool("worker")
	degraded.Conditions = []records.Condition{{Type: "Degraded", Status: "True", Message: "node worker-1 failed"}}

	in := &Input{
		Nodes:              []records.NodeRecord{master, readyNode("worker-0"), readyNode("worker-1")},
		MachineConfigPools: []records.MachineConfigPoolRecord{degraded},
	}
	issues, err := (&AnalyzeMachineConfigPools{}).Analyze(in, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"machineconfigpool/worker", "node/worker-0", "node/worker-1"}, issues[0].AffectedEntities)
	assert.Equal(t, "Pool reports Degraded=True with 0 degraded machines. node worker-1 failed", issues[0].Description)
	assert.True(t, issues[0].Degraded())
}

func TestAnalyzeMachineConfigPoolsInvalidSelector(t *testing.T) {
	degraded := healthyPool("worker")
	degraded.Conditions = []records.Condition{cond("Degraded", "True")}
	degraded.NodeSelector = &metav1.LabelSelector{MatchExpressions: []metav1.LabelSelectorRequirement{{Key: "a", Operator: "Near"}}}

	in := &Input{Nodes: []records.NodeRecord{readyNode("worker-0")}, MachineConfigPools: []records.MachineConfigPoolRecord{degraded}}
	issues, err := (&AnalyzeMachineConfigPools{}).Analyze(in, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"machineconfigpool/worker"}, issues[0].AffectedEntities)
	assert.Contains(t, issues[0].Description, "could not be evaluated")
}

func TestAnalyzeMachineConfigPoolsNodeFilter(t *testing.T) {
	master := readyNode("master-0")
	master.Labels = map[string]string{"node-role.kubernetes.io/master": ""}

	workerPool := healthyPool("worker")
	workerPool.UnavailableMachineCount = 1
	masterPool := healthyPool("master")
	masterPool.NodeSelector = &metav1.LabelSelector{MatchLabels: map[string]string{"node-role.kubernetes.io/master": ""}}
	masterPool.UnavailableMachineCount = 1

	in := &Input{
		Nodes:              []records.NodeRecord{master, readyNode("worker-0")},
		MachineConfigPools: []records.MachineConfigPoolRecord{masterPool, workerPool},
	}

	assert.Equal(t, map[string]Severity{
		"Machine config pool master has 1 unavailable machines": SeverityWarning,
	}, poolTitles(t, in, Options{NodeName: "master-0"}))
	assert.Empty(t, poolTitles(t, in, Options{NodeName: "missing"}))
}
