package analyzer

import (
	"strings"

	"github.com/pkg/errors"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Severities lists all severities from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityCritical}
}

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", errors.Errorf("unknown severity %q, expected one of info, warning, critical", s)
	}
	return sev, nil
}

// AtLeast reports whether s is at or above threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return severityRank[s] >= severityRank[threshold]
}

func (s Severity) Rank() int {
	return severityRank[s]
}

type Category string

const (
	CategoryMachineConfigPool Category = "machine-config-pool"
	CategoryNode              Category = "node"
	CategoryPod               Category = "pod"
	CategoryInstall           Category = "install"
	CategoryClusterOperator   Category = "cluster-operator"
	CategoryClusterVersion    Category = "cluster-version"
)

type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)
