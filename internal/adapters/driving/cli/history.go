package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent import and export runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run with its plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the portal response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached portal responses",
	RunE:  runCacheClear,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list (0 = all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)

	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if maintenance == nil {
		return errors.New("history service not configured")
	}

	runs, err := maintenance.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		result := status(true, "ok")
		if !run.Succeeded() {
			result = status(false, "aborted")
		}
		kind := string(run.Kind)
		if run.DryRun {
			kind += " (dry run)"
		}
		cmd.Printf("%s  %s  %-16s %s  %s\n",
			styles.Muted.Render(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			kind,
			result,
			run.File,
		)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if maintenance == nil {
		return errors.New("history service not configured")
	}

	run, err := maintenance.Run(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	cmd.Println(title("Run " + run.ID))
	cmd.Printf("  Kind:    %s\n", run.Kind)
	cmd.Printf("  File:    %s\n", run.File)
	cmd.Printf("  Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.Error != "" {
		cmd.Printf("  Error:   %s\n", styles.Error.Render(run.Error))
	}
	cmd.Println()
	printPlan(cmd, run.Entries)
	printRunSummary(cmd, run)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	if maintenance == nil {
		return errors.New("cache service not configured")
	}
	if err := maintenance.ClearCache(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("Response cache cleared.")
	return nil
}
