// Package bootstrap builds the app for the serverless entry point, which may not import internal packages.
package bootstrap

import (
	"net/http"

	"farmdirect-backend/internal/config"
	"farmdirect-backend/internal/interfaces/router"
	"farmdirect-backend/internal/logging"
)

// New loads configuration, initialises logging and returns the app as a net/http handler.
func New() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Options{Level: cfg.LogLevel})
	app, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return router.Handler(app.Fiber), nil
}
