package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// planFile is the YAML document written by import --plan-file.
type planFile struct {
	Run      string             `yaml:"run"`
	Kind     domain.RunKind     `yaml:"kind"`
	File     string             `yaml:"file"`
	DryRun   bool               `yaml:"dry_run"`
	Started  time.Time          `yaml:"started"`
	Finished time.Time          `yaml:"finished"`
	Error    string             `yaml:"error,omitempty"`
	Entries  []domain.PlanEntry `yaml:"datasets"`
}

// writePlanFile stores the plan of a run as YAML.
func writePlanFile(path string, run *domain.Run) error {
	plan := planFile{
		Run:      run.ID,
		Kind:     run.Kind,
		File:     run.File,
		DryRun:   run.DryRun,
		Started:  run.StartedAt,
		Finished: run.FinishedAt,
		Error:    run.Error,
		Entries:  run.Entries,
	}
	data, err := yaml.Marshal(&plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// printRunSummary prints the counters of a finished run.
func printRunSummary(cmd *cobra.Command, run *domain.Run) {
	s := run.Stats
	label := "Import"
	if run.Kind == domain.RunExport {
		label = "Export"
	}
	if run.DryRun {
		label += " (dry run)"
	}

	if run.Succeeded() {
		cmd.Printf("%s %s in %s\n", label, status(true, "finished"), run.Duration().Round(time.Millisecond))
	} else {
		cmd.Printf("%s %s\n", label, status(false, "aborted"))
	}

	if run.Kind == domain.RunExport {
		cmd.Printf("  Datasets:  %d exported, %d skipped\n", s.DatasetsExported, s.DatasetsSkipped)
	} else {
		cmd.Printf("  Datasets:  %d created, %d updated, %d skipped\n",
			s.DatasetsCreated, s.DatasetsUpdated, s.DatasetsSkipped)
		cmd.Printf("  Resources: %d created, %d updated, %d deleted, %d unchanged\n",
			s.ResourcesCreated, s.ResourcesUpdated, s.ResourcesDeleted, s.ResourcesUnchanged)
	}
	if s.RecordErrors > 0 || s.Warnings > 0 {
		cmd.Printf("  %s\n", styles.Warning.Render(
			fmt.Sprintf("%d record errors, %d warnings", s.RecordErrors, s.Warnings)))
	}
	cmd.Printf("  Run: %s\n", styles.Muted.Render(run.ID))
}

// printPlan lists what happened, or would happen, per dataset row.
func printPlan(cmd *cobra.Command, entries []domain.PlanEntry) {
	for _, e := range entries {
		line := fmt.Sprintf("  row %d: %s %q", e.Row, e.Action, e.Title)
		if e.NodeID != "" {
			line += " (node " + e.NodeID + ")"
		}
		if e.Action == domain.DatasetFailed {
			line = styles.Error.Render(line)
		}
		cmd.Println(line)
		if e.Message != "" {
			cmd.Printf("      %s\n", e.Message)
		}
		for _, op := range e.Operations {
			if op.Kind == domain.OpNoOp && !verbose {
				continue
			}
			cmd.Printf("      %s resource %q", op.Kind, op.Title)
			if op.Ref != "" {
				cmd.Printf(" (node %s)", op.Ref)
			}
			cmd.Println()
			for _, r := range op.Reasons {
				cmd.Printf("        %s\n", styles.Muted.Render(r))
			}
		}
		for _, w := range e.Warnings {
			cmd.Printf("      %s\n", styles.Warning.Render("warning: "+w))
		}
	}
}
