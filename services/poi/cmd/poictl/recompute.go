package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/PoiCatalog/pkg/database"
	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
	"github.com/utafrali/PoiCatalog/services/poi/internal/cache"
	cacheredis "github.com/utafrali/PoiCatalog/services/poi/internal/cache/redis"
	"github.com/utafrali/PoiCatalog/services/poi/internal/event"
	"github.com/utafrali/PoiCatalog/services/poi/internal/repository/postgres"
	"github.com/utafrali/PoiCatalog/services/poi/internal/scheduler"
	"github.com/utafrali/PoiCatalog/services/poi/internal/score"
	"github.com/utafrali/PoiCatalog/services/poi/internal/service"
)

var (
	recomputePoi     string
	recomputeTimeout time.Duration
)

// recomputeCmd refreshes popularity scores outside the server's schedule.
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute popularity scores",
	Long:  "Recomputes every Poi's score, or a single one with --poi, and prints the result as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), recomputeTimeout)
		defer cancel()

		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()

		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		defer producer.Close()
		publisher := event.NewPublisher(producer, nil, event.DefaultPublisherConfig(), log)
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer flushCancel()
			_ = publisher.Close(flushCtx)
		}()

		engine, err := score.NewEngine(cfg.Score())
		if err != nil {
			return err
		}
		pois := postgres.NewPoiRepository(pool)
		views := cache.NewPoiViews(cacheredis.New(redisClient), cfg.CacheTTL, cfg.CacheTimeout)
		recomputer := service.NewRecomputer(pois, postgres.NewReviewRepository(pool), engine, views, publisher, log)

		if recomputePoi != "" {
			value, err := recomputer.Recompute(ctx, recomputePoi, service.TriggerManual)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"poi_id": recomputePoi, "score": value})
		}

		report, err := scheduler.New(pois, recomputer, 0, log).RunOnce(ctx, service.TriggerManual)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d pois failed to recompute", report.Failed, report.Total)
		}
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputePoi, "poi", "", "recompute a single Poi by id")
	recomputeCmd.Flags().DurationVar(&recomputeTimeout, "timeout", time.Hour, "overall time limit")
	rootCmd.AddCommand(recomputeCmd)
}
