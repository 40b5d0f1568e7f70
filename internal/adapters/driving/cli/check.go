package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check configuration, portal compatibility and a spreadsheet",
	Long: `Lists the configuration, the dataset and resource counts of the portal
and the extension fields in use, validates the first package and its node
against the expected structure and tests the login.

With a file argument the spreadsheet header and rows are checked as well.
--sheet-only skips the portal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var linkcheckCmd = &cobra.Command{
	Use:   "linkcheck [file]",
	Short: "Probe every url found in a spreadsheet",
	Long: `Sends a HEAD request to every url found in the cells of the spreadsheet
(default: sheet.filename). The resource url column is skipped; export
--check-links covers it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLinkcheck,
}

var checkSheetOnly bool

func init() {
	checkCmd.Flags().BoolVar(&checkSheetOnly, "sheet-only", false, "check the spreadsheet without contacting the portal")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(linkcheckCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checker == nil {
		return errors.New("check service not configured")
	}
	if checkSheetOnly && len(args) == 0 {
		return errors.New("--sheet-only needs a file argument")
	}

	failed := false
	if !checkSheetOnly {
		if settingsService != nil {
			if err := runSettingsShow(cmd, nil); err != nil {
				return err
			}
		}
		report, err := checker.CheckPortal(cmd.Context())
		if err != nil {
			return err
		}
		printPortalReport(cmd, report)
		failed = !report.Compatible() || !report.LoginOK
	}

	if len(args) > 0 {
		report, err := checker.CheckSheet(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSheetReport(cmd, report)
		failed = failed || len(report.RecordErrors) > 0
	}

	if failed {
		return errors.New("check found problems")
	}
	return nil
}

func printPortalReport(cmd *cobra.Command, r *driving.PortalReport) {
	cmd.Println(title("Portal " + r.URL))
	cmd.Printf("  Datasets:  %d\n", r.Datasets)
	cmd.Printf("  Resources: %d\n", r.Resources)

	if len(r.ExtensionUsage) > 0 {
		cmd.Println(styles.Section.Render("  Extension fields:"))
		keys := make([]string, 0, len(r.ExtensionUsage))
		for k := range r.ExtensionUsage {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("    %s: %d\n", k, r.ExtensionUsage[k])
		}
	}

	cmd.Printf("  Package list: %s\n", schemaStatus(r.PackageSchemaErr))
	node := schemaStatus(r.NodeSchemaErr)
	if r.SampleNodeID != "" {
		node += styles.Muted.Render(" (node " + r.SampleNodeID + ")")
	}
	cmd.Printf("  Dataset node: %s\n", node)

	if r.LoginOK {
		cmd.Printf("  Login: %s\n", status(true, "ok"))
	} else {
		cmd.Printf("  Login: %s %s\n", status(false, "failed"), r.LoginError)
	}
	cmd.Println()
}

func schemaStatus(problem string) string {
	if problem == "" {
		return status(true, "compatible")
	}
	return status(false, "not compatible") + ": " + problem
}

func printSheetReport(cmd *cobra.Command, r *driving.SheetReport) {
	cmd.Println(title("Spreadsheet " + r.Path))
	cmd.Printf("  Rows: %d (%d datasets, %d resources)\n", r.Rows, r.Datasets, r.Resources)
	if r.DatasetOnly {
		cmd.Println("  No resource columns, only datasets are imported")
	}
	printList(cmd, "Missing dataset columns", r.MissingDataset)
	printList(cmd, "Missing resource columns", r.MissingResource)
	printList(cmd, "Extension columns", r.ExtensionColumns)
	printList(cmd, "Unknown columns", r.UnknownColumns)

	if len(r.RecordErrors) == 0 {
		cmd.Printf("  Records: %s\n", status(true, "ok"))
	} else {
		cmd.Printf("  Records: %s\n", status(false, fmt.Sprintf("%d problems", len(r.RecordErrors))))
		for _, e := range r.RecordErrors {
			cmd.Printf("    %s\n", e)
		}
	}
	cmd.Println()
}

func printList(cmd *cobra.Command, label string, items []string) {
	if len(items) == 0 {
		return
	}
	cmd.Printf("  %s: %s\n", label, strings.Join(items, ", "))
}

func runLinkcheck(cmd *cobra.Command, args []string) error {
	if checker == nil {
		return errors.New("check service not configured")
	}

	path, err := sheetPath(args)
	if err != nil {
		return err
	}

	reports, err := checker.CheckLinks(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("link check failed: %w", err)
	}

	broken := 0
	for _, r := range reports {
		if r.OK {
			continue
		}
		broken++
		cmd.Printf("  %s row %d, %s: %s\n", status(false, "["+r.Status+"]"), r.Row, r.Column, r.URL)
	}
	cmd.Printf("%d links checked, %d broken\n", len(reports), broken)
	if broken > 0 {
		return fmt.Errorf("%d broken links", broken)
	}
	return nil
}

// sheetPath returns the file argument or the configured spreadsheet.
func sheetPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if settingsService == nil {
		return "", errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return "", fmt.Errorf("failed to get settings: %w", err)
	}
	return settings.Sheet.Filename, nil
}
