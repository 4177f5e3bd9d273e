package app

import (
	"fmt"
	"log"
	"time"

	"payment-router/internal/config"
	"payment-router/internal/services"
	"payment-router/internal/store"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type Application struct {
	config   *config.Config
	services *services.Service
	store    *store.RedisStore
}

func NewApp(config *config.Config) (*Application, error) {
	store, err := store.NewRedisStore(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	services := services.NewServices(config, store)

	return &Application{
		config:   config,
		services: services,
		store:    store,
	}, nil
}

func (app *Application) Services() *services.Service {
	return app.services
}

func (app *Application) Mount() *fasthttp.Server {
	r := router.New()
	r.POST("/payments", app.paymentsHandler)
	r.GET("/payments/status", app.statusHandler)
	r.GET("/payments/queue/{queueId}", app.queueItemHandler)
	r.GET("/payments-summary", app.summaryHandler)
	r.GET("/health", app.livenessHandler)

	return &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (app *Application) Run(server *fasthttp.Server) error {
	log.Printf("Starting server on port %s", app.config.Port)
	return server.ListenAndServe(":" + app.config.Port)
}
