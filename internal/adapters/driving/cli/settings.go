package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the portal connection, spreadsheet locations and
import/export options.

Settings are stored in config.toml in the configuration directory.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one setting",
	Long: `Set one setting by its config key, for example:

  dkansync settings set sheet.filename daten.xlsx
  dkansync settings set features.dataset_ids "abc-123, limit=10"

Run 'dkansync settings keys' to list the keys.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the setting keys",
	RunE:  runSettingsKeys,
}

var settingsPortalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Configure the portal connection",
	Long:  `Prompt for the portal URL and the Drupal account used for writes.`,
	RunE:  runSettingsPortal,
}

// promptInput is where interactive prompts read from; tests replace it.
var promptInput io.Reader = os.Stdin

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsPortalCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(title("Current Settings"))
	cmd.Println()

	p := settings.Portal
	cmd.Println(styles.Section.Render("[Portal]"))
	cmd.Printf("  URL: %s\n", orNotSet(p.URL))
	cmd.Printf("  Username: %s\n", orNotSet(p.Username))
	if p.Password != "" {
		cmd.Printf("  Password: %s\n", maskAPIKey(p.Password))
	} else {
		cmd.Printf("  Password: (not set)\n")
	}
	if p.InsecureSkipVerify {
		cmd.Printf("  TLS verification: %s\n", styles.Warning.Render("disabled"))
	}
	cmd.Printf("  Requests per second: %d\n", p.RequestsPerSecond)
	cmd.Printf("  Text formats: %s (datasets), %s (resources)\n", p.DatasetTextFormat, p.ResourceTextFormat)
	cmd.Printf("  Upload path marker: %s\n", p.UploadedPathMarker)
	cmd.Printf("  Datastore path marker: %s\n", p.DatastorePathMarker)
	cmd.Println()

	cmd.Println(styles.Section.Render("[Sheet]"))
	cmd.Printf("  Filename: %s\n", settings.Sheet.Filename)
	cmd.Printf("  Download directory: %s\n", settings.Sheet.DownloadDir)
	cmd.Println()

	f := settings.Features
	cmd.Println(styles.Section.Render("[Features]"))
	cmd.Printf("  Skip resources: %s\n", yesNo(f.SkipResources))
	cmd.Printf("  Check resource links: %s\n", yesNo(f.CheckResources))
	cmd.Printf("  Detailed resources: %s\n", yesNo(f.DetailedResources))
	cmd.Printf("  Download resources: %s\n", yesNo(f.DownloadResources))
	cmd.Printf("  Force resource update: %s\n", yesNo(f.ForceResourceUpdate))
	if len(f.DatasetIDs) > 0 {
		cmd.Printf("  Dataset ids: %s\n", strings.Join(f.DatasetIDs, ", "))
	}
	if f.Limit > 0 {
		cmd.Printf("  Limit: %d\n", f.Limit)
	}
	cmd.Println()

	cmd.Println(styles.Section.Render("[Reconcile]"))
	fields := make([]string, len(settings.Reconcile.CompareFields))
	for i, c := range settings.Reconcile.CompareFields {
		fields[i] = c.String()
	}
	cmd.Printf("  Compare fields: %s\n", strings.Join(fields, ", "))
	cmd.Println()

	cmd.Println(styles.Section.Render("[Cache]"))
	cmd.Printf("  Enabled: %s\n", yesNo(settings.Cache.Enabled))
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("%s %v\n", styles.Warning.Render("Warning:"), err)
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s.\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, k := range settingsService.Keys() {
		cmd.Println(k)
	}
	return nil
}

func runSettingsPortal(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	current, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	reader := bufio.NewReader(promptInput)

	cmd.Println(title("Portal Connection"))
	cmd.Println()

	cmd.Printf("Portal URL [%s]: ", current.Portal.URL)
	url := readLine(reader)
	if url == "" {
		url = current.Portal.URL
	}

	cmd.Printf("Username [%s]: ", current.Portal.Username)
	username := readLine(reader)
	if username == "" {
		username = current.Portal.Username
	}

	password := current.Portal.Password
	if username != "" {
		cmd.Print("Password (leave empty to keep): ")
		if input := readPassword(reader); input != "" {
			password = input
		}
		cmd.Println()
	}

	if err := settingsService.SetPortal(url, username, password); err != nil {
		return fmt.Errorf("failed to configure portal: %w", err)
	}

	if strings.HasPrefix(url, "https://") {
		insecure := confirm(cmd, reader, "Skip TLS certificate verification?", current.Portal.InsecureSkipVerify)
		if err := settingsService.SetValue("portal.insecure_skip_verify", strconv.FormatBool(insecure)); err != nil {
			return fmt.Errorf("failed to configure portal: %w", err)
		}
	}
	cmd.Printf("Portal set to %s\n", strings.TrimRight(url, "/"))
	return nil
}

func orNotSet(value string) string {
	if value == "" {
		return "(not set)"
	}
	return value
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, else a plain line.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(reader *bufio.Reader) string {
	if f, ok := promptInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// confirm asks a yes/no question; empty input picks defaultYes.
func confirm(cmd *cobra.Command, reader *bufio.Reader, question string, defaultYes bool) bool {
	choices := []string{"yes", "no"}
	def := 2
	if defaultYes {
		def = 1
	}
	cmd.Printf("%s 1) %s 2) %s [%d]: ", question, choices[0], choices[1], def)
	return parseChoice(readLine(reader), len(choices), def) == 1
}
