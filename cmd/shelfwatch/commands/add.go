package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/monitor"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Create a tracking for a product URL",
	Long: `Look up a product page interactively and start tracking it.

Examples:
  shelfwatch add --owner 42 --mode stock "https://www.mashkar.co.il/product/12345"
  shelfwatch add --owner 42 --interval 120 "https://www.mashkar.co.il/product/12345"`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	flags := addCmd.Flags()
	flags.Int64("owner", 0, "owner id (required)")
	flags.String("mode", "changes", "detection mode: stock, changes")
	flags.Int("interval", 0, "check interval in minutes (0 = owner default)")
	_ = addCmd.MarkFlagRequired("owner")
}

func runAdd(cmd *cobra.Command, args []string) error {
	st, err := newStack(true)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.close()

	owner, _ := cmd.Flags().GetInt64("owner")
	mode, _ := cmd.Flags().GetString("mode")
	interval, _ := cmd.Flags().GetInt("interval")

	svc := monitor.NewService(st.registry, st.picker, st.pipeline, st.store,
		st.config.InteractiveTimeout)

	res, err := svc.AddTracking(context.Background(), owner, args[0], track.Mode(mode), interval)
	if err != nil {
		logError("%v", err)
		return err
	}

	switch {
	case res.Revived:
		fmt.Printf("Revived tracking %d (was errored)\n", res.Tracking.ID)
	case res.Duplicate:
		fmt.Printf("Already tracked as %d (%s)\n", res.Tracking.ID, res.Tracking.Name)
	default:
		fmt.Printf("Tracking %d created: %s [%s, every %dm]\n",
			res.Tracking.ID, res.Tracking.Name, res.Tracking.Mode, res.Tracking.IntervalMinutes)
		if !res.NameRecognized {
			fmt.Println("Warning: no product name could be extracted from the page")
		}
	}
	return nil
}
