package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/ppiankov/opslens/internal/history"
	"github.com/ppiankov/opslens/internal/report"
	"github.com/ppiankov/opslens/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyConfig struct {
	Tool  string
	Limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse reports recorded with --history-db",
	Long: `Every command run with --history-db (or history_db in the config file)
stores its reports in a local SQLite database. These commands read it back.

Examples:
  opslens history list --history-db ~/.opslens/history.db
  opslens history list --tool pod --limit 5
  opslens history show 42 --format markdown
  opslens history stats`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.List(historyConfig.Tool, historyConfig.Limit)
		if err != nil {
			return err
		}
		printHistory(os.Stdout, entries)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one recorded report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return util.Invalid("invalid report id %q", args[0])
		}
		if err := validateFormat(); err != nil {
			return err
		}

		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.Get(id)
		if err != nil {
			return util.Invalid("%v", err)
		}
		return render(os.Stdout, viper.GetString("format"), []*report.Report{r})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count recorded reports per tool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		counts, err := db.Counts()
		if err != nil {
			return err
		}
		tools := make([]string, 0, len(counts))
		for t := range counts {
			tools = append(tools, t)
		}
		sort.Strings(tools)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Tool", "Reports"})
		for _, t := range tools {
			table.Append([]string{t, strconv.Itoa(counts[t])})
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd)

	historyListCmd.Flags().StringVar(&historyConfig.Tool, "tool", "", "only reports of this tool (docker, pod, cost, actions, terraform)")
	historyListCmd.Flags().IntVar(&historyConfig.Limit, "limit", 20, "maximum reports to list")
}

func openHistory() (*history.DB, error) {
	path := viper.GetString("history_db")
	if path == "" {
		return nil, util.Invalid("no history database configured (--history-db or history_db in ~/.opslens.yaml)")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, util.Invalid("history database %s: %v", path, err)
	}
	return history.Open(path)
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No reports recorded")
		return
	}
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Tool", "Subject", "Generated", "Status"})
	for _, e := range entries {
		status := "ok"
		if e.Failed {
			status = "AI error"
		}
		table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			e.Tool,
			e.Subject,
			e.GeneratedAt.Local().Format("2006-01-02 15:04"),
			status,
		})
	}
	table.Render()
}
