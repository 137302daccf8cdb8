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

package training

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/TFMV/OrganMatchPro/internal/bundle"
	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/internal/matcher"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/pkg/pca"
	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

const (
	lockFileName  = ".train.lock"
	stagingSuffix = ".staging"
)

// ErrLocked is returned when another training run holds the artifacts directory.
var ErrLocked = errors.New("artifacts directory is locked by another training run")

// Config describes where artifacts go and how the model is fitted.
type Config struct {
	ArtifactsDir string
	BundleFile   string
	// SimilarityMatrixFile, when set, receives the pairwise cosine matrix.
	SimilarityMatrixFile string
	// ProjectionFile, when set, receives a PCA projection of the reference vectors.
	ProjectionFile       string
	ProjectionComponents int
	Vectorizer           tfidf.Options
	Dataset              dataset.Options
	Workers              int
}

// Report summarizes a training run.
type Report struct {
	Source         string        `json:"source"`
	RowsRead       int           `json:"rows_read"`
	RowsUsed       int           `json:"rows_used"`
	RowsSkipped    int           `json:"rows_skipped"`
	ZeroVectors    int           `json:"zero_vectors"`
	Terms          int           `json:"terms"`
	BundlePath     string        `json:"bundle_path"`
	MatrixPath     string        `json:"matrix_path,omitempty"`
	ProjectionPath string        `json:"projection_path,omitempty"`
	SmokeMatches   int           `json:"smoke_matches"`
	Duration       time.Duration `json:"duration"`
}

// Pipeline fits the vector space model and writes the serving artifacts.
type Pipeline struct {
	cfg    Config
	schema profile.Schema
	logger *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg Config, schema profile.Schema, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	cfg.Vectorizer.Delimiter = schema.Delimiter
	return &Pipeline{cfg: cfg, schema: schema, logger: logger}
}

// Run executes the whole pipeline against src.
func (p *Pipeline) Run(ctx context.Context, src dataset.Source) (*Report, error) {
	start := time.Now()
	report := &Report{Source: src.Describe()}

	if err := os.MkdirAll(p.cfg.ArtifactsDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create artifacts directory: %w", err)
	}
	lock := flock.New(filepath.Join(p.cfg.ArtifactsDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unable to lock artifacts directory: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer lock.Unlock()

	p.logger.Info("Loading reference dataset", zap.String("source", report.Source))
	table, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	report.RowsRead = len(table.Rows)

	ds, err := dataset.Normalize(table, p.schema, p.cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize dataset: %w", err)
	}
	report.RowsUsed = len(ds.Records)
	report.RowsSkipped = ds.Skipped
	p.logger.Info("Normalized reference dataset",
		zap.Int("rows_read", report.RowsRead),
		zap.Int("rows_used", report.RowsUsed),
		zap.Int("rows_skipped", report.RowsSkipped),
	)

	docs := ds.Documents()
	model, err := tfidf.NewVectorizer(p.cfg.Vectorizer).Fit(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to fit vectorizer: %w", err)
	}
	report.Terms = model.Size()
	p.logger.Info("Fitted vocabulary", zap.Int("terms", model.Size()))

	vectors, err := p.transform(ctx, model, docs)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if v.IsZero() {
			report.ZeroVectors++
		}
	}
	if report.ZeroVectors > 0 {
		p.logger.Warn("Reference rows share no term with the vocabulary", zap.Int("rows", report.ZeroVectors))
	}

	b := &bundle.Bundle{
		Schema:    p.schema,
		Model:     model,
		Vectors:   vectors,
		Records:   ds.Records,
		CreatedAt: time.Now().UTC(),
	}
	// The bundle is staged next to its final name and only replaces the served
	// bundle once every other output and the smoke test succeed.
	report.BundlePath = filepath.Join(p.cfg.ArtifactsDir, p.cfg.BundleFile)
	staging := report.BundlePath + stagingSuffix
	if err := bundle.Save(staging, b); err != nil {
		return nil, fmt.Errorf("failed to save bundle: %w", err)
	}
	defer os.Remove(staging)
	p.logger.Info("Staged artifact bundle", zap.String("path", staging))

	if p.cfg.SimilarityMatrixFile != "" {
		report.MatrixPath = filepath.Join(p.cfg.ArtifactsDir, p.cfg.SimilarityMatrixFile)
		if err := writeSimilarityMatrix(report.MatrixPath, vectors); err != nil {
			return nil, fmt.Errorf("failed to write similarity matrix: %w", err)
		}
		p.logger.Info("Saved similarity matrix", zap.String("path", report.MatrixPath))
	}

	if p.cfg.ProjectionFile != "" {
		report.ProjectionPath = filepath.Join(p.cfg.ArtifactsDir, p.cfg.ProjectionFile)
		if err := writeProjection(report.ProjectionPath, vectors, model.Size(), p.cfg.ProjectionComponents); err != nil {
			return nil, fmt.Errorf("failed to write projection: %w", err)
		}
		p.logger.Info("Saved PCA projection", zap.String("path", report.ProjectionPath))
	}

	report.SmokeMatches, err = p.smokeTest(staging, ds.Records[0])
	if err != nil {
		return nil, fmt.Errorf("smoke test failed: %w", err)
	}
	if err := os.Rename(staging, report.BundlePath); err != nil {
		return nil, fmt.Errorf("unable to move bundle into place: %w", err)
	}
	p.logger.Info("Saved artifact bundle", zap.String("path", report.BundlePath))

	report.Duration = time.Since(start)
	p.logger.Info("Training completed", zap.Duration("duration", report.Duration))
	return report, nil
}

// transform vectorizes every document with a bounded worker pool.
func (p *Pipeline) transform(ctx context.Context, model *tfidf.Model, docs []string) ([]tfidf.Vector, error) {
	vectors := make([]tfidf.Vector, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vectors[i] = model.Transform(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to transform documents: %w", err)
	}
	return vectors, nil
}

// smokeTest reloads the written bundle and queries it with a reference record.
func (p *Pipeline) smokeTest(path string, sample dataset.Record) (int, error) {
	b, err := bundle.Load(path, p.schema)
	if err != nil {
		return 0, err
	}
	engine, err := matcher.FromBundle(b)
	if err != nil {
		return 0, err
	}
	res, err := engine.FindMatches(sample.Profile(), matcher.DefaultMatches)
	if err != nil {
		return 0, err
	}
	if len(res.Matches) == 0 {
		return 0, errors.New("no matches returned for a reference record")
	}
	p.logger.Debug("Smoke test query",
		zap.String("document", sample.Document),
		zap.Int("matches", len(res.Matches)),
		zap.Float64("best_distance", res.Matches[0].Distance),
	)
	return len(res.Matches), nil
}

// writeSimilarityMatrix stores the full pairwise cosine matrix in gonum's binary
// matrix format.
func writeSimilarityMatrix(path string, vectors []tfidf.Vector) error {
	n := len(vectors)
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, matcher.CosineSimilarity(vectors[i], vectors[j]))
		}
	}
	dense := mat.DenseCopyOf(m)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := dense.MarshalBinaryTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSimilarityMatrix loads a matrix written by the pipeline.
func ReadSimilarityMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m mat.Dense
	if _, err := m.UnmarshalBinaryFrom(f); err != nil {
		return nil, err
	}
	return &m, nil
}

// writeProjection writes one CSV row per reference record with its PCA coordinates.
func writeProjection(path string, vectors []tfidf.Vector, dim, components int) error {
	data := mat.NewDense(len(vectors), dim, nil)
	for i, v := range vectors {
		data.SetRow(i, v.Dense(dim))
	}
	projected, err := pca.NewPCA(components).FitTransform(data)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	rows, cols := projected.Dims()
	header := make([]string, cols+1)
	header[0] = "id"
	for j := 0; j < cols; j++ {
		header[j+1] = "pc" + strconv.Itoa(j+1)
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for i := 0; i < rows; i++ {
		row := make([]string, cols+1)
		row[0] = strconv.Itoa(i)
		for j := 0; j < cols; j++ {
			row[j+1] = strconv.FormatFloat(projected.At(i, j), 'f', 6, 64)
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
