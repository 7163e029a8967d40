package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/enrollhub/internal/service"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that purges registrations orphaned by cascading resource deletes`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	purger := service.NewPurgeService(store)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.PurgeInterval),
			gocron.NewTask(func() {
				if _, err := purger.PurgeOrphans(ctx); err != nil {
					log.Error().Err(err).Msg("orphan purge failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Worker.PurgeInterval).Msg("orphan purge job scheduled")
		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker error")
		return err
	}
	log.Info().Msg("worker shutting down gracefully")
	return nil
}
