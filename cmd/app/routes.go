package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ratefeed/internal/api"
	"ratefeed/internal/api/middleware"
	"ratefeed/internal/relay"
	"ratefeed/internal/service"
)

const monitoringPath = "/monitoring"

func (app *App) initHTTP(rateService service.RateServiceInterface) {
	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger))
	r.Use(middleware.MetricsMiddleware(app.metrics))
	r.Use(chimiddleware.Recoverer)

	r.Get("/rates/current", api.HandleGetCurrentRate(rateService))
	r.Get("/rates/history", api.HandleGetHistory(rateService))
	r.Get("/rates/stale", api.HandleGetStale(rateService, app.cfg.Pricing.StaleAfterMinutes))
	r.Post("/rates/refresh", api.HandleRefresh(rateService))
	r.Get("/convert", api.HandleConvert(rateService))
	r.Get("/config", api.HandleGetConfig(rateService))
	r.Patch("/config", api.HandleUpdateConfig(rateService))
	r.Get("/ws/rates", api.HandleRateStream(rateService, app.logger))
	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.db, app.rdbCache, app.rdbAsynq))
	r.Handle("/metrics", promhttp.Handler())

	if app.cfg.Server.ServeRelay {
		r.Method(http.MethodGet, "/api/proxy", relay.NewHandler(relay.Upstreams{
			CoinGecko: app.cfg.Sources.CoinGeckoURL,
			Binance:   app.cfg.Sources.BinanceURL,
			Coinbase:  app.cfg.Sources.CoinbaseURL,
		}, app.cfg.Sources.TimeoutSec, app.logger))
	}

	if app.cfg.Server.ServeSwagger {
		api.MountSwagger(r)
	}

	if app.cfg.Server.ServeAsynqmon && app.cfg.Redis.AsynqAddr != "" {
		mon := asynqmon.New(asynqmon.Options{
			RootPath:     monitoringPath,
			RedisConnOpt: asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr},
		})
		r.Handle(monitoringPath+"/*", mon)
	}

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
