package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/collsync/internal/config"
	"github.com/dl-alexandre/collsync/internal/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets redacted",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := globalFlags.Config
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	redacted := *cfg
	redacted.Users = make([]config.User, len(cfg.Users))
	for i, u := range cfg.Users {
		redacted.Users[i] = u
		if u.Password != "" {
			redacted.Users[i].Password = "********"
		}
	}

	if globalFlags.OutputFormat == types.OutputFormatJSON {
		return writeJSON(redacted)
	}

	logins := make([]string, len(redacted.Users))
	for i, u := range redacted.Users {
		logins[i] = u.Login
	}
	limit := "-"
	if redacted.GlobalLimit >= 0 {
		limit = strconv.Itoa(redacted.GlobalLimit)
	}
	rows := [][]string{
		{"API URL", redacted.APIURL},
		{"Data root", redacted.DataRoot},
		{"Archive root", redacted.ArchiveRoot},
		{"Journal", redacted.JournalPath},
		{"Users", strings.Join(logins, ", ")},
		{"Formats", strings.Join(redacted.SupportedFormats, " ")},
		{"Skip prefixes", strings.Join(redacted.SkipPrefixes, " ")},
		{"Global limit", limit},
		{"Request timeout", strconv.Itoa(redacted.RequestTimeout) + "s"},
		{"Dry run", strconv.FormatBool(redacted.DryRun)},
	}
	renderTable([]string{"Setting", "Value"}, rows, "")
	return nil
}
