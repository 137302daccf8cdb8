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

package matcher

import (
	"errors"
	"fmt"

	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

// DefaultMatches is the match count used when a caller does not ask for one.
const DefaultMatches = 5

// Match is one ranked reference record.
type Match struct {
	ID         int            `json:"id"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity_score"`
	Record     dataset.Record `json:"record"`
}

// Result is the outcome of FindMatches. Degenerate is set when the query shares
// no term with the vocabulary; matches are then ordered by reference vector norm.
type Result struct {
	Matches    []Match `json:"matches"`
	Degenerate bool    `json:"degenerate"`
}

// Engine answers match and compatibility queries against a fitted model. It is
// never mutated after construction and is safe for concurrent use.
type Engine struct {
	encoder profile.Encoder
	model   *tfidf.Model
	index   *Index
}

// NewEngine combines a schema, a fitted model and an optional reference index.
// Without an index FindMatches fails with ErrIndexUnavailable while compatibility
// scoring keeps working.
func NewEngine(schema profile.Schema, model *tfidf.Model, index *Index) (*Engine, error) {
	if model == nil {
		return nil, errors.New("engine requires a fitted model")
	}
	if schema.Delimiter != model.Options().Delimiter {
		return nil, fmt.Errorf("schema delimiter %q does not match model delimiter %q",
			schema.Delimiter, model.Options().Delimiter)
	}
	if index != nil && index.Dim() != model.Size() {
		return nil, fmt.Errorf("index dimension %d does not match vocabulary size %d", index.Dim(), model.Size())
	}
	return &Engine{encoder: profile.NewEncoder(schema), model: model, index: index}, nil
}

// Ready reports whether a reference index is loaded.
func (e *Engine) Ready() bool {
	return e.index != nil
}

// IndexSize returns the number of reference records, or 0 without an index.
func (e *Engine) IndexSize() int {
	if e.index == nil {
		return 0
	}
	return e.index.Len()
}

// Model returns the fitted model.
func (e *Engine) Model() *tfidf.Model {
	return e.model
}

// Schema returns the schema used to encode profiles.
func (e *Engine) Schema() profile.Schema {
	return e.encoder.Schema()
}

// Vectorize encodes p and maps it into the model's vector space.
func (e *Engine) Vectorize(p profile.Profile) (string, tfidf.Vector) {
	doc := e.encoder.Encode(p)
	return doc, e.model.Transform(doc)
}

// FindMatches returns the n reference records nearest to p, n clamped to the
// index size.
func (e *Engine) FindMatches(p profile.Profile, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: n_matches must be positive, got %d", ErrInvalidArgument, n)
	}
	if p == nil {
		return Result{}, fmt.Errorf("%w: profile is required", ErrInvalidArgument)
	}
	if e.index == nil {
		return Result{}, ErrIndexUnavailable
	}

	doc, q := e.Vectorize(p)
	if doc == "" {
		return Result{}, ErrMalformedQuery
	}

	hits, err := e.index.Search(q, n)
	if err != nil {
		return Result{}, err
	}

	res := Result{Matches: make([]Match, len(hits)), Degenerate: q.IsZero()}
	for i, h := range hits {
		res.Matches[i] = Match{
			ID:         h.ID,
			Distance:   h.Distance,
			Similarity: CosineSimilarity(q, e.index.Vector(h.ID)),
			Record:     e.index.Record(h.ID),
		}
	}
	return res, nil
}

// CompatibilityScore returns the cosine similarity of two profiles in [0, 1]. It
// does not consult the reference index.
func (e *Engine) CompatibilityScore(a, b profile.Profile) float64 {
	_, va := e.Vectorize(a)
	_, vb := e.Vectorize(b)
	return CosineSimilarity(va, vb)
}
