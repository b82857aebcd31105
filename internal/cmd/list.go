package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/style"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: GroupInfo,
	Short:   "List all sessions",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	sessions, _, err := d.store.LoadAll()
	if err != nil {
		return err
	}

	if listJSON {
		// Wrapped in an object (not a bare array) so consumers like the
		// embedded Claude status hook (internal/hooks/claude.go) can
		// `jq -e '.sessions[] | select(...)'` without a leading `.[]`.
		return printJSON(struct {
			Sessions []*model.Session `json:"sessions"`
		}{Sessions: sessions})
	}

	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	table := style.NewTable(
		style.Column{Name: "BRANCH", Width: 28},
		style.Column{Name: "AGENT", Width: 10},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "RUNTIME", Width: 9},
		style.Column{Name: "LAST ACTIVITY", Width: 20},
	)
	for _, s := range sessions {
		table.AddRow(s.Branch, s.Agent, string(s.Status), string(s.RuntimeMode), s.LastActivity)
	}
	fmt.Print(table.Render())
	return nil
}
