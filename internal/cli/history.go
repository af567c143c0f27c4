package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/collsync/internal/journal"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

var (
	historyLimit int
	historyRunID int64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past sync runs from the journal",
	Long: `Lists recent runs recorded in the journal database. With --run,
shows the per-entry outcomes of one run instead.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().Int64Var(&historyRunID, "run", 0, "Show the outcomes of one run")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return utils.NewAppError(utils.ErrCodeConfigInvalid,
			"No journal configured: set journalPath in the configuration").
			Build()
	}
	db, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if historyRunID > 0 {
		return showOutcomes(cmd, db)
	}
	return showRuns(cmd, db)
}

func showRuns(cmd *cobra.Command, db *journal.DB) error {
	runs, err := db.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if globalFlags.OutputFormat == types.OutputFormatJSON {
		return writeJSON(runs)
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		dry := ""
		if r.DryRun {
			dry = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			r.Status,
			dry,
			strconv.Itoa(r.Stats.UploadedFiles),
			formatSize(r.Stats.UploadedBytes),
			strconv.Itoa(r.Stats.MovedFiles + r.Stats.DeletedFiles),
			strconv.Itoa(r.Stats.MovedFolders + r.Stats.DeletedFolders),
		})
	}
	renderTable(
		[]string{"Run", "Started", "Finished", "Status", "Dry", "Uploaded", "Bytes", "Files retired", "Folders retired"},
		rows, "No runs recorded")
	return nil
}

func showOutcomes(cmd *cobra.Command, db *journal.DB) error {
	outcomes, err := db.ListOutcomes(cmd.Context(), historyRunID)
	if err != nil {
		return err
	}
	if globalFlags.OutputFormat == types.OutputFormatJSON {
		return writeJSON(outcomes)
	}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.User, o.RelPath, o.Kind, o.Action, o.Detail,
		})
	}
	renderTable(
		[]string{"User", "Path", "Kind", "Action", "Detail"},
		rows, "No outcomes recorded for this run")
	return nil
}
