package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmdirect-backend/internal/config"
	"farmdirect-backend/internal/interfaces/router"
	"farmdirect-backend/internal/logging"

	"github.com/rs/zerolog/log"
)

var app *router.App
var appCfg *config.Config

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	appCfg = cfg
	logging.Init(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty && !cfg.IsProduction(), File: cfg.LogFile})

	a, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create failed")
	}
	app = a
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	sqlDB, err := app.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	log.Info().Msg("postgres connected")
	if err := app.Rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Msg("redis connected")
	cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info().Msg("shutting down")
		if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("port", appCfg.Port).Msgf("health check: http://localhost:%s/health/json", appCfg.Port)
	if err := app.Fiber.Listen(":" + appCfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen failed")
	}
	// drain async notification handlers before the redis client goes away
	app.Events.Wait()
	_ = app.Rdb.Close()
}
