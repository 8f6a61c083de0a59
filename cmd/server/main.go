package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/access"
	"github.com/zhortlabs/zhort/internal/cache"
	"github.com/zhortlabs/zhort/internal/clicks"
	"github.com/zhortlabs/zhort/internal/config"
	"github.com/zhortlabs/zhort/internal/db"
	"github.com/zhortlabs/zhort/internal/geo"
	"github.com/zhortlabs/zhort/internal/handlers"
	"github.com/zhortlabs/zhort/internal/logger"
	"github.com/zhortlabs/zhort/internal/ratelimit"
	"github.com/zhortlabs/zhort/internal/resolver"
	"github.com/zhortlabs/zhort/internal/safety"
	"github.com/zhortlabs/zhort/internal/smartrules"
	"github.com/zhortlabs/zhort/internal/variants"
	"github.com/zhortlabs/zhort/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog := logger.New()
	defer zlog.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	defer database.Close()

	geoReader, err := geo.Open(cfg.GeoIPPath)
	if err != nil {
		zlog.Warn("geo database unavailable, lookups disabled", zap.Error(err))
		geoReader, _ = geo.Open("")
	}
	defer geoReader.Close()

	linkCache := cache.NewLinkCache(cfg.CacheSize, cfg.ConfigCacheTTL)
	configCache := cache.NewConfigCache(cfg.CacheSize, cfg.ConfigCacheTTL)
	limiter := ratelimit.New(database, zlog)
	checker := safety.NewChecker(database, zlog, cfg.SafetyFeedURL, cfg.PhishingAPIURL)
	recorder := clicks.NewRecorder(database, geoReader, zlog, cfg.ClickBufferSize, cfg.FlushInterval)
	dispatcher := webhooks.NewDispatcher(database, zlog, cfg.WebhookQueueSize, cfg.WebhookTimeout)
	selector := variants.New(database, zlog)

	pipeline := resolver.New(
		database, linkCache, configCache,
		access.NewController(database, limiter, zlog),
		selector, smartrules.New(), geoReader, recorder, dispatcher, zlog,
	)

	linkHandler := &handlers.LinkHandler{
		DB: database, Cfg: cfg, Links: linkCache, Configs: configCache,
		Safety: checker, Limiter: limiter, Hooks: dispatcher,
	}
	variantHandler := &handlers.VariantHandler{DB: database, Selector: selector}
	ruleHandler := &handlers.RuleHandler{DB: database, Configs: configCache}
	webhookHandler := &handlers.WebhookHandler{DB: database}
	qrHandler := &handlers.QRHandler{DB: database, Cfg: cfg}
	redirectHandler := &handlers.RedirectHandler{Pipeline: pipeline}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(handlers.RequestLogger(zlog))
	r.Use(chimiddleware.Recoverer)

	if cfg.AllowAnonymous {
		r.Post("/shorten", linkHandler.CreateAnonymous)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(cfg.APIKey))
		r.Post("/links", linkHandler.Create)
		r.Get("/links", linkHandler.List)
		r.Get("/links/{id}", linkHandler.Get)
		r.Patch("/links/{id}", linkHandler.Update)
		r.Delete("/links/{id}", linkHandler.Archive)
		r.Get("/links/{id}/stats", linkHandler.Stats)
		r.Get("/links/{id}/qr", qrHandler.ServeHTTP)
		r.Post("/links/{id}/variants", variantHandler.Create)
		r.Get("/links/{id}/variants", variantHandler.List)
		r.Post("/links/{id}/winner", variantHandler.Winner)
		r.Post("/variants/{id}/convert", variantHandler.Convert)
		r.Post("/links/{id}/rules", ruleHandler.CreateRule)
		r.Get("/links/{id}/rules", ruleHandler.ListRules)
		r.Post("/links/{id}/schedules", ruleHandler.CreateSchedule)
		r.Post("/webhooks", webhookHandler.Create)
		r.Get("/webhooks", webhookHandler.List)
	})

	// Everything else is a short code.
	r.NotFound(redirectHandler.ServeHTTP)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zlog.Info("listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server", zap.Error(err))
		}
	}()

	<-stop
	zlog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Warn("server shutdown", zap.Error(err))
	}

	// Drain in reverse dependency order: no new requests, then pending
	// clicks, then pending webhook deliveries, then the blocklist refresher.
	recorder.Shutdown()
	dispatcher.Shutdown()
	checker.Shutdown()
	zlog.Info("goodbye")
}
