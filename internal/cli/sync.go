package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/collsync/internal/journal"
	"github.com/dl-alexandre/collsync/internal/remote"
	"github.com/dl-alexandre/collsync/internal/sync"
	"github.com/dl-alexandre/collsync/internal/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload local folders to their remote collections",
	Long: `Scans every configured user's folder, binds or creates the matching
remote collections, uploads eligible files and retires them per folder
policy. A user's failure does not stop the other users.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var recorder sync.Recorder
	if cfg.JournalPath != "" {
		db, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer db.Close()
		recorder = db
	}

	factory := remote.NewFactory(cfg.APIURL, time.Duration(cfg.RequestTimeout)*time.Second, logger)
	engine := sync.New(cfg, afero.NewOsFs(), factory, recorder, logger)

	stats, runErr := engine.Run(cmd.Context())
	if err := writeStats(stats, cfg.DryRun); err != nil {
		return err
	}
	return runErr
}

func writeStats(stats types.SyncStats, dryRun bool) error {
	if globalFlags.OutputFormat == types.OutputFormatJSON {
		return writeJSON(stats)
	}

	suffix := ""
	if dryRun {
		suffix = " (dry run)"
	}
	rows := [][]string{
		{"Uploaded files", strconv.Itoa(stats.UploadedFiles), formatSize(stats.UploadedBytes)},
		{"Moved files", strconv.Itoa(stats.MovedFiles), formatSize(stats.MovedBytes)},
		{"Deleted files", strconv.Itoa(stats.DeletedFiles), formatSize(stats.DeletedBytes)},
		{"Moved folders", strconv.Itoa(stats.MovedFolders), "-"},
		{"Deleted folders", strconv.Itoa(stats.DeletedFolders), "-"},
	}
	if stats.Empty() && !globalFlags.Quiet {
		fmt.Printf("Nothing to do%s\n", suffix)
		return nil
	}
	renderTable([]string{"Action" + suffix, "Count", "Bytes"}, rows, "Nothing to do")
	return nil
}
