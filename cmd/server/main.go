package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutritrack/foodvision/config"
	"github.com/nutritrack/foodvision/inference/providers"
	"github.com/nutritrack/foodvision/logger"
	"github.com/nutritrack/foodvision/server"
	"github.com/nutritrack/foodvision/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.ParseConfigFlag(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Debug)
	defer func() { _ = log.Sync() }()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing model keeps the server up; /healthz and /v1/classify report it.
	var analyzer server.Analyzer
	svc, loadErr := service.Start(ctx, cfg, log)
	if loadErr != nil {
		log.Error("model unavailable", zap.String("path", cfg.Model.Path), zap.Error(loadErr))
	} else {
		analyzer = svc
		defer func() {
			_ = svc.Close()
			_ = providers.DestroyEnvironment()
		}()
	}

	catalog, err := service.LoadCatalog(cfg)
	if err != nil {
		log.Fatal("failed to load food catalog", zap.String("path", cfg.Nutrition.Catalog), zap.Error(err))
	}

	handler := server.NewHandler(analyzer, loadErr, cfg.Classify.MaxBytes, log).WithCatalog(catalog)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
