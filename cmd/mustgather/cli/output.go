package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-wordwrap"
	"github.com/pkg/errors"
	analyzer "github.com/replicatedhq/mustgather/pkg/analyze"
	"github.com/replicatedhq/mustgather/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"

	wrapWidth = 100
)

// write renders v in the requested format. text renders the human readable form.
func write(w io.Writer, format string, v interface{}, text func(io.Writer) error) error {
	switch format {
	case outputJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal json")
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err

	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to marshal yaml")
		}
		return enc.Close()

	case outputText, "":
		return text(w)
	}
	return types.NewInvalidInputError("", fmt.Sprintf("unsupported output format %q", format), nil)
}

func severityColor(s analyzer.Severity) *color.Color {
	switch s {
	case analyzer.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case analyzer.SeverityWarning:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgCyan)
}

func healthColor(h analyzer.Health) *color.Color {
	switch h {
	case analyzer.HealthCritical:
		return color.New(color.FgRed, color.Bold)
	case analyzer.HealthWarning:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgGreen)
}

// indent wraps s and prefixes every line.
func indent(s, prefix string) string {
	wrapped := wordwrap.WrapString(s, uint(wrapWidth-len(prefix)))
	return prefix + strings.ReplaceAll(wrapped, "\n", "\n"+prefix)
}

func writeWarnings(w io.Writer, warnings []types.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", color.New(color.Bold).Sprintf("Warnings (%d)", len(warnings)))
	for _, warning := range warnings {
		fmt.Fprintln(w, indent(warning.String(), "  "))
	}
}

func writeAnalysis(w io.Writer, result *analyzer.Result) error {
	s := result.Summary
	fmt.Fprintf(w, "Overall health: %s\n", healthColor(s.OverallHealth).Sprint(s.OverallHealth))
	fmt.Fprintf(w, "Issues: %d (critical %d, warning %d, info %d)\n", s.TotalIssues,
		s.IssuesBySeverity[analyzer.SeverityCritical],
		s.IssuesBySeverity[analyzer.SeverityWarning],
		s.IssuesBySeverity[analyzer.SeverityInfo])
	fmt.Fprintf(w, "Nodes: %d/%d ready (%.1f%%)\n", s.Nodes.Ready, s.Nodes.Total, s.Nodes.ReadyPercentage)
	fmt.Fprintf(w, "Machine config pools: %d total, %d degraded, %d updating\n",
		s.MachineConfigPools.Total, s.MachineConfigPools.Degraded, s.MachineConfigPools.Updating)
	fmt.Fprintf(w, "Pods: %d total, %d running, %d pending, %d failed, %d succeeded, %d not ready\n",
		s.Pods.Total, s.Pods.Running, s.Pods.Pending, s.Pods.Failed, s.Pods.Succeeded, s.Pods.NotReady)
	if s.Agents.Total > 0 {
		fmt.Fprintf(w, "Agents: %d total, %d installed, %d failed, %d not approved\n",
			s.Agents.Total, s.Agents.Installed, s.Agents.Failed, s.Agents.Pending)
		for _, rec := range s.Agents.Recommendations {
			fmt.Fprintln(w, indent("- "+rec, "  "))
		}
	}

	for _, issue := range result.Issues {
		fmt.Fprintf(w, "\n%s %s\n", severityColor(issue.Severity).Sprintf("[%s]", strings.ToUpper(string(issue.Severity))), color.New(color.Bold).Sprint(issue.Title))
		if issue.Description != "" {
			fmt.Fprintln(w, indent(issue.Description, "    "))
		}
		if len(issue.AffectedEntities) > 0 {
			fmt.Fprintln(w, indent("Affected: "+strings.Join(issue.AffectedEntities, ", "), "    "))
		}
		for _, action := range issue.SuggestedActions {
			fmt.Fprintln(w, indent("- "+action, "    "))
		}
	}
	return nil
}
