package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/logger"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Write spreadsheet datasets and resources to the portal",
	Long: `Reads the spreadsheet (default: sheet.filename) and creates or updates
one dataset per dataset row. The resource rows following a dataset row are
reconciled against the resources of the dataset: new ones are created,
changed ones updated and those no longer listed deleted.

Rows with a Node-ID or Dataset-ID update the existing dataset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

type importOptions struct {
	dryRun        bool
	planFile      string
	forceUpdate   bool
	skipResources bool
	only          []string
	limit         int
	watch         bool
}

var importOpts importOptions

func init() {
	f := importCmd.Flags()
	f.BoolVar(&importOpts.dryRun, "dry-run", false, "compute the plan without writing to the portal")
	f.StringVar(&importOpts.planFile, "plan-file", "", "write the plan of the run as YAML to this file")
	f.BoolVar(&importOpts.forceUpdate, "force-update", false, "update matched resources even when unchanged")
	f.BoolVar(&importOpts.skipResources, "skip-resources", false, "import dataset rows only")
	f.StringSliceVar(&importOpts.only, "only", nil, "dataset or node ids to import, and an optional limit=N")
	f.IntVar(&importOpts.limit, "limit", 0, "stop after this many datasets")
	f.BoolVar(&importOpts.watch, "watch", false, "import again whenever the spreadsheet changes")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importer == nil {
		return errors.New("import service not configured")
	}

	req, err := importRequest(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if !importOpts.watch {
		return importOnce(ctx, cmd, req)
	}
	return importWatch(ctx, cmd, req)
}

func importRequest(args []string) (driving.ImportRequest, error) {
	req := driving.ImportRequest{
		DryRun:        importOpts.dryRun,
		ForceUpdate:   importOpts.forceUpdate,
		SkipResources: importOpts.skipResources,
		Limit:         importOpts.limit,
	}
	if len(args) > 0 {
		req.Path = args[0]
	}
	if len(importOpts.only) > 0 {
		ids, limit, err := domain.SplitDatasetFilter(importOpts.only)
		if err != nil {
			return req, err
		}
		req.DatasetIDs = ids
		if req.Limit == 0 {
			req.Limit = limit
		}
	}
	if req.Limit < 0 {
		return req, fmt.Errorf("%w: negative limit %d", domain.ErrInvalidInput, req.Limit)
	}
	return req, nil
}

func importOnce(ctx context.Context, cmd *cobra.Command, req driving.ImportRequest) error {
	if req.DryRun {
		cmd.Println("Planning import (dry run)...")
	} else {
		cmd.Println("Importing...")
	}

	run, err := importer.Import(ctx, req)
	if run != nil {
		if req.DryRun || verbose {
			printPlan(cmd, run.Entries)
		}
		printRunSummary(cmd, run)
		if importOpts.planFile != "" {
			if perr := writePlanFile(importOpts.planFile, run); perr != nil {
				logger.Error("%v", perr)
			} else {
				cmd.Printf("Plan written to %s\n", importOpts.planFile)
			}
		}
	}
	return err
}

// importWatch imports once and then after every change of the spreadsheet
// until interrupted. Failed runs are reported and watching continues.
func importWatch(ctx context.Context, cmd *cobra.Command, req driving.ImportRequest) error {
	if fileWatcher == nil {
		return errors.New("file watcher not configured")
	}
	path := req.Path
	if path == "" {
		if settingsService == nil {
			return errors.New("--watch needs a file argument")
		}
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		path = settings.Sheet.Filename
	}

	events, err := fileWatcher.Watch(ctx, path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	report := func() {
		if err := importOnce(ctx, cmd, req); err != nil && ctx.Err() == nil {
			cmd.PrintErrln(errorLine(err))
		}
	}
	report()
	cmd.Printf("Watching %s for changes (Ctrl+C to stop)...\n", path)

	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped watching.")
			return nil
		case _, ok := <-events:
			if !ok {
				cmd.Println("Stopped watching.")
				return nil
			}
			cmd.Printf("%s changed\n", path)
			report()
		}
	}
}
