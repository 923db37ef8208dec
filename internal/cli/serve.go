package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskcal/internal/config"
	"taskcal/internal/ics"
	appLog "taskcal/internal/log"
	"taskcal/internal/metrics"
	"taskcal/internal/planner"
	"taskcal/internal/refresh"
	"taskcal/internal/store"
	"taskcal/internal/web"
)

func newServeCommand(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the subscription refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", *configPath, err)
			}
			if listen != "" {
				conf.Listen = listen
			}
			appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, conf)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(ctx context.Context, conf *config.Config) error {
	loc, err := conf.Location()
	if err != nil {
		return err
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"users", len(conf.Users),
		"ics_count", len(conf.ICS),
	)

	m := metrics.New()
	p := planner.New(store.New(conf.Users), planner.WithLocation(loc), planner.WithObserver(m))

	refresher := refresh.New(conf, loc, ics.NewFetcher(conf.CacheDir), p, refresh.WithRecorder(m))
	if err := refresher.RunOnce(ctx); err != nil {
		appLog.Error("initial subscription refresh incomplete", err)
	}
	if err := refresher.Start(ctx, conf.RefreshCron); err != nil {
		return err
	}

	srv := web.NewServer(p, conf, web.WithMetrics(m))
	if err := web.StartServer(ctx, srv, conf.Listen); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	appLog.Info("taskcal exiting")
	return nil
}
