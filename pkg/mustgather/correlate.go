package mustgather

import (
	"github.com/replicatedhq/mustgather/pkg/correlate"
	"github.com/replicatedhq/mustgather/pkg/records"
	"github.com/replicatedhq/mustgather/pkg/types"
)

type LinkKind string

const (
	LinkAgentsToCluster LinkKind = "agents-to-cluster"
	LinkNodesToPool     LinkKind = "nodes-to-pool"
	LinkPoolsToNode     LinkKind = "pools-to-node"
	LinkEventsToPod     LinkKind = "events-to-pod"
	LinkEventsToNode    LinkKind = "events-to-node"
)

func LinkKinds() []LinkKind {
	return []LinkKind{LinkAgentsToCluster, LinkNodesToPool, LinkPoolsToNode, LinkEventsToPod, LinkEventsToNode}
}

// LinkParams names the record the link starts from.
type LinkParams struct {
	Name      string
	Namespace string
	// MatchEmptySelector makes pools without selector terms select every node.
	MatchEmptySelector bool
}

// Correlate returns the records linked to the one named by params. A name
// that matches no record yields an empty result.
func Correlate(result *ParseResult, kind LinkKind, params LinkParams) ([]records.Record, error) {
	if result == nil {
		return nil, types.NewInvalidInputError("", "no parse result", nil)
	}
	opts := correlate.SelectorOptions{MatchEmpty: params.MatchEmptySelector}

	switch kind {
	case LinkAgentsToCluster:
		return toRecords(correlate.AgentsForClusterRef(result.Agents, params.Name, params.Namespace)), nil

	case LinkNodesToPool:
		for _, pool := range result.MachineConfigPools {
			if pool.Name != params.Name {
				continue
			}
			nodes, err := correlate.NodesForPool(result.Nodes, pool, opts)
			if err != nil {
				return nil, types.NewInvalidInputError(pool.Name, "pool has an invalid node selector", err)
			}
			return toRecords(nodes), nil
		}
		return []records.Record{}, nil

	case LinkPoolsToNode:
		for _, node := range result.Nodes {
			if node.Name == params.Name {
				return toRecords(correlate.PoolsForNode(result.MachineConfigPools, node, opts)), nil
			}
		}
		return []records.Record{}, nil

	case LinkEventsToPod:
		pod := records.PodRecord{Name: params.Name, Namespace: params.Namespace}
		return toRecords(correlate.EventsForPod(result.Events, pod)), nil

	case LinkEventsToNode:
		node := records.NodeRecord{Name: params.Name}
		return toRecords(correlate.EventsForNode(result.Events, node)), nil
	}

	return nil, types.NewInvalidInputError("", "unknown link kind "+string(kind), nil)
}

func toRecords[T records.Record](in []T) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		out = append(out, r)
	}
	return out
}
