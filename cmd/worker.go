package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/studyplanner/planner/config"
	"github.com/studyplanner/planner/internal/logging"
	"github.com/studyplanner/planner/internal/mq"
	"github.com/studyplanner/planner/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes timetable import notifications",
	Long: `Subscribes to the import channel on the configured message broker and
records every timetable import. Requires MQ_BACKEND to be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logging.New("planner-worker", cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND must name a broker to run the worker")
		}
		defer bus.Close()

		log.WithField("channel", cfg.MQ.Channel).Info("import worker started")
		if err := worker.NewImportAuditor(log).Run(ctx, bus, cfg.MQ.Channel); err != nil {
			return fmt.Errorf("worker stopped: %w", err)
		}
		log.Info("import worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
