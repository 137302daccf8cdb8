
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/TFMV/OrganMatchPro/internal/bundle"
	"github.com/TFMV/OrganMatchPro/internal/matcher"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/pkg/api"
	"github.com/TFMV/OrganMatchPro/pkg/config"
	"github.com/TFMV/OrganMatchPro/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "Path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load the trained artifacts once; the engine is read-only afterwards
	path := cfg.Artifacts.BundlePath()
	b, err := bundle.Load(path, profile.DefaultSchema())
	if err != nil {
		logger.Fatal("Failed to load artifact bundle", zap.String("path", path), zap.Error(err))
	}
	engine, err := matcher.FromBundle(b)
	if err != nil {
		logger.Fatal("Failed to build match engine", zap.Error(err))
	}
	info := b.Info()
	logger.Info("Artifact bundle loaded",
		zap.String("path", path),
		zap.Int("records", info.Records),
		zap.Int("terms", info.Terms),
		zap.Time("created_at", info.CreatedAt),
	)

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.NewHandler(engine, &info, cfg.Server.DefaultMatches, logger), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", zap.Error(err))
	}
}
