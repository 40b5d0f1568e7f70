// Package cli provides the dkansync command line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// Services used by the commands. Set by the wiring before a command runs.
var (
	importer        driving.Importer
	exporter        driving.Exporter
	checker         driving.Checker
	maintenance     driving.Maintenance
	settingsService driving.SettingsService
	fileWatcher     driven.FileWatcher
)

// Services holds the driving ports a command may use.
// Any field may be nil; commands report the missing service.
type Services struct {
	Importer    driving.Importer
	Exporter    driving.Exporter
	Checker     driving.Checker
	Maintenance driving.Maintenance
	Settings    driving.SettingsService
	Watcher     driven.FileWatcher

	// Close releases stores opened by the wiring.
	Close func() error
}

// Wiring builds the services once the persistent flags are parsed.
type Wiring func(configDir string) (*Services, error)

var (
	wiring        Wiring
	closeServices func() error

	verbose   bool
	quiet     bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "dkansync",
	Short: "Synchronise spreadsheets with a DKAN open data portal",
	Long: `dkansync imports datasets and resources from a spreadsheet into a
Drupal/DKAN portal and exports the portal content back into a spreadsheet.

Configure the portal first with 'dkansync settings portal'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupServices,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if closeServices == nil {
			return nil
		}
		err := closeServices()
		closeServices = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and errors")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"configuration directory (default $DKANSYNC_CONFIG_DIR or ~/.dkansync)")
}

func setupServices(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetQuiet(quiet)
	if wiring == nil {
		return nil
	}
	svc, err := wiring(configDir)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	SetServices(svc)
	return nil
}

// SetServices installs the services used by the commands.
func SetServices(svc *Services) {
	importer = svc.Importer
	exporter = svc.Exporter
	checker = svc.Checker
	maintenance = svc.Maintenance
	settingsService = svc.Settings
	fileWatcher = svc.Watcher
	closeServices = svc.Close
}

// Execute runs the root command. w is called after flag parsing.
// The returned error has already been printed.
func Execute(w Wiring, buildVersion string) error {
	wiring = w
	if buildVersion != "" {
		version = buildVersion
	}
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln(errorLine(err))
	}
	return err
}

// errorLine formats the single top-level error report.
func errorLine(err error) string {
	var abortErr *domain.AbortError
	if errors.As(err, &abortErr) {
		return styles.Error.Render("Aborted: "+abortErr.Kind.String()) + "\n  " + abortErr.Err.Error()
	}
	return styles.Error.Render("Error:") + " " + err.Error()
}
