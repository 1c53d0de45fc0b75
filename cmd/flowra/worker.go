package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	redisadapter "github.com/aretw0/flowra/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume deferred actions from the redis queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWorker(ctx, a)
	},
}

func runWorker(ctx context.Context, a *app) error {
	if a.queue == nil {
		return errors.New("worker needs deferred.driver: redis")
	}
	w := redisadapter.NewWorker(a.queue, a.resolver,
		redisadapter.WithWorkerLogger(a.logger),
		redisadapter.WithJobErrorHandler(func(j *redisadapter.Job, err error) {
			a.logger.Error("deferred action failed", "job", j.ID, "action", j.Action, "owner", j.Owner.String(), "error", err)
		}),
	)
	a.logger.Info("worker started", "queue", a.cfg.Deferred.Queue)
	return w.Run(ctx)
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
