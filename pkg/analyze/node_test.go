package analyzer

import (
	"testing"

	"github.com/replicatedhq/mustgather/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeNodes(t *testing.T) {
	notReady := readyNode("worker-1")
	notReady.Ready = false
	notReady.Conditions = []records.Condition{{Type: "Ready", Status: "Unknown", Reason: "NodeStatusUnknown", Message: "Kubelet stopped posting node status."}}

	noCondition := readyNode("worker-2")
	noCondition.Ready = false
	noCondition.Conditions = []records.Condition{}

	pressured := readyNode("worker-3")
	pressured.Conditions = append(pressured.Conditions, cond("DiskPressure", "True"), cond("MemoryPressure", "True"), cond("PIDPressure", "False"))
	pressured.Unschedulable = true

	events := []records.EventRecord{
		{Type: "Warning", Reason: "NodeNotReady", Message: "Node worker-1 status is now: NodeNotReady", Count: 3, InvolvedObject: records.ObjectRef{Kind: "Node", Name: "worker-1"}},
		{Type: "Warning", Reason: "ContainerGCFailed", Message: "rpc error", InvolvedObject: records.ObjectRef{Kind: "Node", Name: "worker-1"}},
		{Type: "Normal", Reason: "NodeReady", InvolvedObject: records.ObjectRef{Kind: "Node", Name: "worker-1"}},
		{Type: "Warning", Reason: "EvictionThresholdMet", Message: "attempting to reclaim ephemeral-storage", InvolvedObject: records.ObjectRef{Kind: "Node", Name: "worker-3"}},
	}

	in := &Input{Nodes: []records.NodeRecord{readyNode("worker-0"), notReady, noCondition, pressured}, Events: events}
	issues, err := (&AnalyzeNodes{}).Analyze(in, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, issues, 4)

	assert.Equal(t, "Node worker-1 is not ready", issues[0].Title)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, "Ready=Unknown. NodeStatusUnknown: Kubelet stopped posting node status. "+
		"Recent warning events: ContainerGCFailed (x1): rpc error; NodeNotReady (x3): Node worker-1 status is now: NodeNotReady",
		issues[0].Description)
	assert.True(t, issues[0].Degraded())

	assert.Equal(t, "Node worker-2 is not ready", issues[1].Title)
	assert.Equal(t, "Ready condition not reported.", issues[1].Description)

	assert.Equal(t, "Node worker-3 is under pressure", issues[2].Title)
	assert.Equal(t, SeverityWarning, issues[2].Severity)
	assert.Equal(t, "Node reports MemoryPressure, DiskPressure. Recent warning events: EvictionThresholdMet (x1): attempting to reclaim ephemeral-storage", issues[2].Description)

	assert.Equal(t, "Node worker-3 is cordoned", issues[3].Title)
	assert.Equal(t, SeverityInfo, issues[3].Severity)

	filtered, err := (&AnalyzeNodes{}).Analyze(in, Options{NodeName: "worker-2"}.withDefaults())
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Node worker-2 is not ready", filtered[0].Title)
}

func TestSummarizeEventsLimit(t *testing.T) {
	events := []records.EventRecord{}
	for _, reason := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		events = append(events, records.EventRecord{Type: "Warning", Reason: reason, Message: "m"})
	}
	assert.Equal(t, "A (x1): m; B (x1): m; C (x1): m; D (x1): m; E (x1): m; and 2 more", summarizeEvents(events))
	assert.Empty(t, summarizeEvents(nil))
}
