package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/cohort/calendar"
	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/notify"
	"github.com/cppla/cohort/profiles"
	"github.com/cppla/cohort/routes"
	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the orphan upload sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		cfg := a.cfg
		log := utils.L()

		authz := content.NewConfigAuthorizer(a.db, cfg)
		notifier := notify.NewService(a.db, log, a.metrics)
		store := content.NewStore(a.db, authz, notifier, content.WithStoreLogger(log))
		linker := content.NewLinker(a.db, cfg.MaxFilesPerEntity,
			content.WithLinkerLogger(log), content.WithLinkerMetrics(a.metrics))
		uploadSvc := uploads.NewService(a.db, a.storage, uploads.LimitsFromConfig(cfg),
			time.Duration(cfg.OrphanTTLMinutes)*time.Minute,
			uploads.WithLogger(log), uploads.WithMetrics(a.metrics))

		r := routes.SetupRouter(routes.Deps{
			DB:       a.db,
			Config:   cfg,
			Content:  content.NewService(store, linker),
			Uploads:  uploadSvc,
			Storage:  a.storage,
			Notify:   notifier,
			Calendar: calendar.NewService(a.db, authz, log),
			Profiles: profiles.NewService(a.db, log),
			Metrics:  a.metrics,
		})

		// Background cleanup of uploads that were never attached
		sweepCtx, stopSweeper := context.WithCancel(context.Background())
		sweeperDone := a.sweeper().Run(sweepCtx, time.Duration(cfg.SweepIntervalMinutes)*time.Minute)

		utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
		err = utils.GraceServer(":"+cfg.AppPort, r, stopSweeper)
		stopSweeper()
		<-sweeperDone
		if err != nil {
			utils.Sugar.Errorf("server stopped with error: %v", err)
		}
		return err
	},
}
