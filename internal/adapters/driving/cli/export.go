package cli

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write portal datasets and resources to a spreadsheet",
	Long: `Exports every dataset of the portal (default file: sheet.filename).
An existing spreadsheet is continued: datasets already in it are kept and
skipped unless --overwrite is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

type exportOptions struct {
	overwrite     bool
	checkLinks    bool
	detailed      bool
	download      bool
	skipResources bool
	datapackage   string
	cached        bool
	only          []string
	limit         int
}

var exportOpts exportOptions

func init() {
	f := exportCmd.Flags()
	f.BoolVar(&exportOpts.overwrite, "overwrite", false, "re-export datasets already in the spreadsheet")
	f.BoolVar(&exportOpts.checkLinks, "check-links", false, "probe every resource url")
	f.BoolVar(&exportOpts.detailed, "detailed", false, "fetch resource nodes for the detailed columns")
	f.BoolVar(&exportOpts.download, "download", false, "download resource files into sheet.download_dir")
	f.BoolVar(&exportOpts.skipResources, "skip-resources", false, "export dataset rows only")
	f.StringVar(&exportOpts.datapackage, "datapackage", "", "also write a data package descriptor to this directory")
	f.BoolVar(&exportOpts.cached, "cached", false, "read portal responses through the response cache")
	f.StringSliceVar(&exportOpts.only, "only", nil, "dataset or node ids to export, and an optional limit=N")
	f.IntVar(&exportOpts.limit, "limit", 0, "stop after this many datasets")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exporter == nil {
		return errors.New("export service not configured")
	}

	req := driving.ExportRequest{
		Overwrite:       exportOpts.overwrite,
		CheckLinks:      exportOpts.checkLinks,
		Detailed:        exportOpts.detailed,
		Download:        exportOpts.download,
		SkipResources:   exportOpts.skipResources,
		DatapackagePath: exportOpts.datapackage,
		Cached:          exportOpts.cached,
		Limit:           exportOpts.limit,
	}
	if len(args) > 0 {
		req.Path = args[0]
	}
	if len(exportOpts.only) > 0 {
		ids, limit, err := domain.SplitDatasetFilter(exportOpts.only)
		if err != nil {
			return err
		}
		req.DatasetIDs = ids
		if req.Limit == 0 {
			req.Limit = limit
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cmd.Println("Exporting...")
	run, err := exporter.Export(ctx, req)
	if run != nil {
		printRunSummary(cmd, run)
		if run.Succeeded() {
			cmd.Printf("Spreadsheet written to %s\n", run.File)
		}
	}
	return err
}
