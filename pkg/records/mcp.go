package records

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/decode"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

var MachineConfigPoolTarget = decode.Target{Kind: KindMachineConfigPool, APIVersionPrefix: "machineconfiguration.openshift.io"}

const (
	PoolDegradedCondition = "Degraded"
	PoolUpdatingCondition = "Updating"
)

// PoolState is the mutually exclusive health classification of a pool.
type PoolState string

const (
	PoolHealthy  PoolState = "healthy"
	PoolDegraded PoolState = "degraded"
	PoolUpdating PoolState = "updating"
)

type MachineConfigPoolRecord struct {
	Name                    string `json:"name" yaml:"name"`
	MachineCount            int64  `json:"machineCount" yaml:"machineCount"`
	ReadyMachineCount       int64  `json:"readyMachineCount" yaml:"readyMachineCount"`
	UpdatedMachineCount     int64  `json:"updatedMachineCount" yaml:"updatedMachineCount"`
	UnavailableMachineCount int64  `json:"unavailableMachineCount" yaml:"unavailableMachineCount"`
	DegradedMachineCount    int64  `json:"degradedMachineCount" yaml:"degradedMachineCount"`
	// NodeSelector is nil when the pool does not declare one.
	NodeSelector       *metav1.LabelSelector `json:"nodeSelector,omitempty" yaml:"nodeSelector,omitempty"`
	Conditions         []Condition           `json:"conditions" yaml:"conditions"`
	Generation         int64                 `json:"generation" yaml:"generation"`
	ObservedGeneration int64                 `json:"observedGeneration" yaml:"observedGeneration"`
	Paused             bool                  `json:"paused" yaml:"paused"`
	RenderedConfig     string                `json:"renderedConfig,omitempty" yaml:"renderedConfig,omitempty"`
	Source             string                `json:"source" yaml:"source"`
}

func (p MachineConfigPoolRecord) Kind() string { return KindMachineConfigPool }
func (p MachineConfigPoolRecord) Key() Key     { return Key{Name: p.Name} }

// State classifies the pool. Degraded takes priority over updating, which
// takes priority over healthy.
func (p MachineConfigPoolRecord) State() PoolState {
	switch {
	case IsConditionTrue(p.Conditions, PoolDegradedCondition):
		return PoolDegraded
	case IsConditionTrue(p.Conditions, PoolUpdatingCondition):
		return PoolUpdating
	default:
		return PoolHealthy
	}
}

// BuildMachineConfigPool projects a MachineConfigPool document. A missing
// updatedMachineCount is taken to equal machineCount.
func BuildMachineConfigPool(doc decode.Document) (*MachineConfigPoolRecord, error) {
	f := &fields{obj: doc.Object}
	name, _, _ := f.metadata("")

	machines, _ := f.integer("status", "machineCount")
	ready, _ := f.integer("status", "readyMachineCount")
	updated, found := f.integer("status", "updatedMachineCount")
	if !found {
		updated = machines
	}
	unavailable, _ := f.integer("status", "unavailableMachineCount")
	degraded, _ := f.integer("status", "degradedMachineCount")
	generation, _ := f.integer("metadata", "generation")
	observed, _ := f.integer("status", "observedGeneration")

	pool := &MachineConfigPoolRecord{
		Name:                    name,
		MachineCount:            machines,
		ReadyMachineCount:       ready,
		UpdatedMachineCount:     updated,
		UnavailableMachineCount: unavailable,
		DegradedMachineCount:    degraded,
		Conditions:              f.conditions(),
		Generation:              generation,
		ObservedGeneration:      observed,
		Paused:                  f.boolean("spec", "paused"),
		RenderedConfig:          f.str("status", "configuration", "name"),
		Source:                  doc.Source,
	}

	if raw := f.object("spec", "nodeSelector"); raw != nil {
		selector := &metav1.LabelSelector{}
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(raw, selector); err != nil {
			return nil, errors.Wrapf(err, "machineconfigpool %s: invalid nodeSelector", name)
		}
		pool.NodeSelector = selector
	}

	if f.err != nil {
		return nil, errors.Wrapf(f.err, "machineconfigpool %s", name)
	}
	return pool, nil
}

func SortMachineConfigPools(pools []MachineConfigPoolRecord) {
	sort.SliceStable(pools, func(i, j int) bool { return pools[i].Name < pools[j].Name })
}
