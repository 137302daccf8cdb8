// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/internal/training"
	"github.com/TFMV/OrganMatchPro/pkg/config"
	"github.com/TFMV/OrganMatchPro/pkg/db"
	"github.com/TFMV/OrganMatchPro/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "Path to the YAML config file")
	csvPath := flag.String("csv", "", "Reference dataset CSV; overrides dataset.path and forces the csv source")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *csvPath == "" {
		if err := cfg.ValidateDataset(); err != nil {
			logger.Fatal("Invalid dataset configuration", zap.Error(err))
		}
	}

	var src dataset.Source
	switch {
	case *csvPath != "":
		src = dataset.NewCSVSource(*csvPath)
	case cfg.Dataset.Source == "postgres":
		pool, err := db.NewConnection(ctx, cfg.DBCreds.Connection())
		if err != nil {
			logger.Fatal("Failed to create database connection pool", zap.Error(err))
		}
		defer pool.Close()
		src = dataset.NewPostgresSource(pool, cfg.Dataset.Table)
	default:
		src = dataset.NewCSVSource(cfg.Dataset.Path)
	}

	pipeline := training.NewPipeline(training.Config{
		ArtifactsDir:         cfg.Artifacts.Dir,
		BundleFile:           cfg.Artifacts.Bundle,
		SimilarityMatrixFile: cfg.Artifacts.SimilarityMatrix,
		ProjectionFile:       cfg.Artifacts.Projection,
		ProjectionComponents: cfg.Artifacts.ProjectionComponents,
		Vectorizer:           cfg.Vectorizer.Options(),
		Dataset:              cfg.Dataset.Options(),
		Workers:              cfg.Artifacts.Workers,
	}, profile.DefaultSchema(), logger)

	report, err := pipeline.Run(ctx, src)
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}

	logger.Info("Training complete",
		zap.String("source", report.Source),
		zap.Int("rows_read", report.RowsRead),
		zap.Int("rows_used", report.RowsUsed),
		zap.Int("rows_skipped", report.RowsSkipped),
		zap.Int("zero_vectors", report.ZeroVectors),
		zap.Int("terms", report.Terms),
		zap.String("bundle", report.BundlePath),
		zap.String("similarity_matrix", report.MatrixPath),
		zap.String("projection", report.ProjectionPath),
		zap.Int("smoke_matches", report.SmokeMatches),
		zap.Duration("duration", report.Duration),
	)
}
