package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/sparsecompose/internal/store"
	"github.com/spf13/cobra"
)

var (
	runsDataDir   string
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored benchmark run records",
	Long:  `List and prune saved compositing benchmark run records.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved benchmark run records",
	Long:  `Display all benchmark records with metadata including run ID, timestamp, group size, strategy, tiles, wall time, and size on disk.`,
	RunE:  runListRecords,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old benchmark run records",
	Long: `Delete old benchmark run records based on retention policy.
You can specify how many records to keep or delete records older than N days.`,
	RunE: runCleanRecords,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data-dir", "./data", "Base directory for benchmark record storage")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N records (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete records older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListRecords(cmd *cobra.Command, args []string) error {
	recordStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}

	infos, err := recordStore.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No benchmark records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tTIMESTAMP\tGROUP\tSTRATEGY\tTILES\tWALL TIME\tSIZE")
	fmt.Fprintln(w, "------\t---------\t-----\t--------\t-----\t---------\t----")

	for _, info := range infos {
		runDir := filepath.Join(runsDataDir, "runs", info.RunID)
		size, err := getDirSize(runDir)
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		timestamp := info.Timestamp.Format("2006-01-02 15:04:05")

		displayID := info.RunID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			displayID,
			timestamp,
			info.GroupSize,
			info.Strategy,
			info.NumTiles,
			time.Duration(info.WallMicros)*time.Microsecond,
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal records: %d\n", len(infos))
	return nil
}

func runCleanRecords(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	recordStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}

	infos, err := recordStore.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No records to clean.")
		return nil
	}

	toDelete := selectRecordsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No records match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d record(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		displayID := info.RunID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}
		fmt.Printf("  - %s (%s, %s)\n",
			displayID,
			info.Strategy,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := recordStore.DeleteRecord(info.RunID); err != nil {
			slog.Error("failed to delete record", "run_id", info.RunID, "error", err)
			failed++
		} else {
			slog.Info("deleted record", "run_id", info.RunID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d record(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRecordsForDeletion determines which records should be deleted
// based on retention policy.
func selectRecordsForDeletion(infos []store.BenchmarkInfo, keepLast int, olderThanDays int) []store.BenchmarkInfo {
	var toDelete []store.BenchmarkInfo

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.BenchmarkInfo, len(infos))
		copy(sorted, infos)

		for i := 0; i < len(sorted)-1; i++ {
			for j := 0; j < len(sorted)-i-1; j++ {
				if sorted[j].Timestamp.After(sorted[j+1].Timestamp) {
					sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
				}
			}
		}

		numToDelete := len(sorted) - keepLast
		for i := 0; i < numToDelete; i++ {
			found := false
			for _, existing := range toDelete {
				if existing.RunID == sorted[i].RunID {
					found = true
					break
				}
			}
			if !found {
				toDelete = append(toDelete, sorted[i])
			}
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory.
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
