package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/cohort/config"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "cohort",
		Short:        "Community backend for cohort courses: posts, comments, attachments and events",
		SilenceUsage: true,
		RunE:         serveCommand.RunE,
	}
	root.AddCommand(serveCommand, migrateCommand, sweepCommand)
	return root
}

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and columns, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := utils.InitLogger(cfg); err != nil {
			return err
		}
		if err := config.Migrate(config.InitDatabase(), models.All()...); err != nil {
			return err
		}
		utils.Sugar.Info("migrations applied")
		return nil
	},
}

var sweepCommand = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired unattached uploads once, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		n, err := a.sweeper().SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned uploads\n", n)
		return nil
	},
}

// app holds what every command that touches data needs.
type app struct {
	cfg     config.AppConfig
	db      *gorm.DB
	storage storage.Storage
	metrics *utils.Metrics
}

func bootstrap(ctx context.Context, migrate bool) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return nil, err
	}

	var db *gorm.DB
	if migrate {
		db = config.InitDatabase(models.All()...)
	} else {
		db = config.InitDatabase()
	}

	st, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return &app{cfg: cfg, db: db, storage: st, metrics: utils.DefaultMetrics()}, nil
}

func (a *app) sweeper() *uploads.Sweeper {
	return uploads.NewSweeper(a.db, a.storage, utils.L(), a.metrics)
}
