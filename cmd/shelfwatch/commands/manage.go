package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/track"
)

// Owner actions on a tracking: pause/resume toggle scheduling eligibility
// without deletion, remove deletes outright.

var pauseCmd = &cobra.Command{
	Use:   "pause [tracking-id]",
	Short: "Pause a tracking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args[0], track.StatusPaused)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [tracking-id]",
	Short: "Resume a paused or errored tracking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args[0], track.StatusActive)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [tracking-id]",
	Short: "Delete a tracking",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(pauseCmd, resumeCmd, removeCmd)
}

func setStatus(rawID string, status track.Status) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		logError("invalid tracking id %q", rawID)
		return err
	}

	st, err := newStack(true)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.close()

	ctx := context.Background()
	tr, err := st.store.Get(ctx, id)
	if err != nil {
		logError("tracking %d not found", id)
		return err
	}

	if status == track.StatusActive && tr.Status == track.StatusError {
		revived := track.Revive(tr, time.Now().UTC())
		if err := st.store.Update(ctx, revived); err != nil {
			logError("%v", err)
			return err
		}
		fmt.Printf("Tracking %d revived\n", id)
		return nil
	}

	if err := st.store.SetStatus(ctx, id, status); err != nil {
		logError("%v", err)
		return err
	}
	fmt.Printf("Tracking %d is now %s\n", id, status)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		logError("invalid tracking id %q", args[0])
		return err
	}

	st, err := newStack(true)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.close()

	if err := st.store.Delete(context.Background(), id); err != nil {
		logError("%v", err)
		return err
	}
	fmt.Printf("Tracking %d removed\n", id)
	return nil
}
