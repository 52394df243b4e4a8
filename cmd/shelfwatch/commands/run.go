package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shelfwatch/shelfwatch/internal/health"
	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the poll scheduler",
	Long: `Run poll cycles on a fixed interval: select due trackings, check them
in bounded concurrent batches, and log notify decisions.

Example:
  shelfwatch run --interval 30m --batch-size 5 --listen :8080`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.Duration("interval", 60*time.Minute, "wall-clock spacing between poll cycles")
	flags.Int("batch-size", 5, "concurrent checks per batch")
	flags.Duration("batch-pause", 2*time.Second, "delay between batches")
	flags.String("listen", "", "health/stats listen address (empty disables)")
	flags.Bool("once", false, "run a single cycle and exit")

	_ = viper.BindPFlag("cycle_interval", flags.Lookup("interval"))
	_ = viper.BindPFlag("batch_size", flags.Lookup("batch-size"))
	_ = viper.BindPFlag("batch_pause", flags.Lookup("batch-pause"))
	_ = viper.BindPFlag("listen", flags.Lookup("listen"))
}

func runRun(cmd *cobra.Command, args []string) error {
	st, err := newStack(true)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	checker := monitor.NewChecker(st.registry, st.picker, st.pipeline, st.store,
		monitor.LogNotifier{}, st.config.PollTimeout)
	runner := monitor.NewRunner(checker, st.store, monitor.RunnerConfig{
		CycleInterval: viper.GetDuration("cycle_interval"),
		BatchSize:     viper.GetInt("batch_size"),
		BatchPause:    viper.GetDuration("batch_pause"),
	})

	if addr := viper.GetString("listen"); addr != "" {
		hs := health.New(addr, st.store, st.browser)
		go func() {
			if err := hs.Start(); err != nil {
				logger.Error("health server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = hs.Shutdown(shutdownCtx)
		}()
	}

	if once, _ := cmd.Flags().GetBool("once"); once {
		runner.Cycle(ctx)
		return nil
	}

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
