package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's trackings",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Int64("owner", 0, "owner id (required)")
	_ = listCmd.MarkFlagRequired("owner")
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := newStack(true)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.close()

	owner, _ := cmd.Flags().GetInt64("owner")
	trackings, err := st.store.ListByOwner(context.Background(), owner)
	if err != nil {
		logError("%v", err)
		return err
	}
	if len(trackings) == 0 {
		fmt.Println("No trackings")
		return nil
	}

	for _, tr := range trackings {
		name := tr.Name
		if name == "" {
			name = "(no name)"
		}
		checked := "never"
		if !tr.LastChecked.IsZero() {
			checked = tr.LastChecked.Format("2006-01-02 15:04")
		}
		fmt.Printf("%4d  %-12s %-8s every %4dm  checked %s  %s\n      %s\n",
			tr.ID, tr.Status, tr.Mode, tr.IntervalMinutes, checked, name, tr.URL)
	}
	return nil
}
