package cli

import (
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/scanner"
	"github.com/dl-alexandre/collsync/internal/setup"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Preview the local tree without contacting the remote service",
	Long: `Walks every configured user's folder and shows what a sync would
consider: folders, eligible files, resolved policies and quotas. Makes
no network calls and changes nothing.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

type scanRow struct {
	User      string `json:"user"`
	Path      string `json:"path"`
	Files     int    `json:"files"`
	HasID     bool   `json:"hasId"`
	Ephemeral bool   `json:"ephemeral"`
	AfterColl string `json:"afterCollection"`
	AfterItem string `json:"afterItem"`
	Missing   string `json:"missingCollection"`
	Limit     int    `json:"limit"`
	Tags      int    `json:"tags"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fsys := afero.NewOsFs()

	rootSetup, err := setup.Resolve(fsys, cfg.DataRoot, setup.Default())
	if err != nil {
		return err
	}

	var rows []scanRow
	for _, user := range cfg.Users {
		userDir := filepath.Join(cfg.DataRoot, user.Name)
		exists, err := afero.DirExists(fsys, userDir)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		userSetup, err := setup.Resolve(fsys, userDir, rootSetup)
		if err != nil {
			return err
		}
		tree, err := scanner.Scan(cmd.Context(), fsys, userDir, userSetup, scanner.Options{
			Formats:      cfg.SupportedFormats,
			SkipPrefixes: cfg.SkipPrefixes,
			BaseRel:      user.Name,
			Spacer:       utils.NameSpacer,
		})
		if err != nil {
			return err
		}
		for i, node := range tree.Nodes {
			if node.IsFile {
				continue
			}
			rows = append(rows, scanRow{
				User:      user.Login,
				Path:      node.RelPath,
				Files:     len(tree.FileChildren(i)),
				HasID:     node.DeclaredID != uuid.Nil,
				Ephemeral: node.Setup.Ephemeral,
				AfterColl: string(node.Setup.AfterCollection),
				AfterItem: string(node.Setup.AfterItem),
				Missing:   string(node.Setup.MissingCollection),
				Limit:     node.Setup.FolderLimit,
				Tags:      len(node.Setup.Tags),
			})
		}
		for _, w := range tree.Warnings {
			logger.Warn("Subtree skipped during scan", logging.F("reason", w))
		}
	}

	if globalFlags.OutputFormat == types.OutputFormatJSON {
		return writeJSON(rows)
	}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		limit := "-"
		if r.Limit >= 0 {
			limit = strconv.Itoa(r.Limit)
		}
		flags := ""
		if r.HasID {
			flags += "id "
		}
		if r.Ephemeral {
			flags += "ephemeral"
		}
		tableRows = append(tableRows, []string{
			r.User, r.Path, strconv.Itoa(r.Files),
			r.AfterColl, r.AfterItem, r.Missing, limit, flags,
		})
	}
	renderTable(
		[]string{"User", "Path", "Files", "After coll", "After item", "Missing", "Limit", "Flags"},
		tableRows, "No folders found")
	return nil
}
