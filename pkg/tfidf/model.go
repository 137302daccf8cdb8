package tfidf

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Vector is a sparse row over a model vocabulary. Indices are strictly increasing.
type Vector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether the vector has no non-zero component.
func (v Vector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// Dense expands the vector to a slice of length dim.
func (v Vector) Dense(dim int) []float64 {
	out := make([]float64, dim)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}

// Norm returns the Euclidean length of the vector.
func (v Vector) Norm() float64 {
	if len(v.Values) == 0 {
		return 0
	}
	return floats.Norm(v.Values, 2)
}

// Equal reports whether both vectors hold exactly the same components.
func (v Vector) Equal(o Vector) bool {
	if len(v.Indices) != len(o.Indices) || len(v.Values) != len(o.Values) {
		return false
	}
	for i := range v.Indices {
		if v.Indices[i] != o.Indices[i] || v.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether both vectors share the same indices and every
// value differs by at most tol.
func (v Vector) ApproxEqual(o Vector, tol float64) bool {
	if len(v.Indices) != len(o.Indices) || len(v.Values) != len(o.Values) {
		return false
	}
	for i := range v.Indices {
		if v.Indices[i] != o.Indices[i] {
			return false
		}
	}
	return floats.EqualApprox(v.Values, o.Values, tol)
}

// Validate checks that v is a well formed vector of dimension dim: one value per
// index and indices strictly increasing below dim.
func (v Vector) Validate(dim int) error {
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("%d indices for %d values", len(v.Indices), len(v.Values))
	}
	prev := -1
	for _, idx := range v.Indices {
		if idx <= prev || idx >= dim {
			return fmt.Errorf("index %d out of order or beyond dimension %d", idx, dim)
		}
		prev = idx
	}
	return nil
}

// Model is a fitted vocabulary with its IDF weights. It is read-only once built.
type Model struct {
	terms     []string
	index     map[string]int
	idf       []float64
	tokenizer *Tokenizer
	opts      Options
}

// NewModel assembles a Model from persisted parts. Terms must be sorted and unique
// and every weight must be finite and positive.
func NewModel(terms []string, idf []float64, opts Options) (*Model, error) {
	if len(terms) == 0 {
		return nil, ErrEmptyVocabulary
	}
	if len(terms) != len(idf) {
		return nil, fmt.Errorf("vocabulary has %d terms but %d weights", len(terms), len(idf))
	}
	if !sort.StringsAreSorted(terms) {
		return nil, fmt.Errorf("vocabulary terms are not sorted")
	}
	stopWords, err := StopWordList(opts.StopWords)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(terms))
	for i, term := range terms {
		if _, dup := index[term]; dup {
			return nil, fmt.Errorf("duplicate vocabulary term %q", term)
		}
		w := idf[i]
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, fmt.Errorf("invalid weight %g for term %q", w, term)
		}
		index[term] = i
	}

	return &Model{
		terms:     append([]string(nil), terms...),
		index:     index,
		idf:       append([]float64(nil), idf...),
		tokenizer: NewTokenizer(opts.Delimiter, stopWords),
		opts:      opts,
	}, nil
}

// Size returns the vocabulary size, which is also the vector dimension.
func (m *Model) Size() int {
	return len(m.terms)
}

// Terms returns a copy of the vocabulary in column order.
func (m *Model) Terms() []string {
	return append([]string(nil), m.terms...)
}

// IDF returns a copy of the weights in column order.
func (m *Model) IDF() []float64 {
	return append([]float64(nil), m.idf...)
}

// Options returns the options the model was fitted with.
func (m *Model) Options() Options {
	return m.opts
}

// Lookup returns the column of term.
func (m *Model) Lookup(term string) (int, bool) {
	i, ok := m.index[term]
	return i, ok
}

// Transform maps a document to an L2-normalized vector. Terms outside the
// vocabulary are ignored; a document without known terms yields the zero vector.
func (m *Model) Transform(doc string) Vector {
	counts := make(map[int]float64)
	for _, term := range m.tokenizer.Tokenize(doc) {
		if i, ok := m.index[term]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	indices := make([]int, 0, len(counts))
	for i := range counts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	for k, i := range indices {
		values[k] = counts[i] * m.idf[i]
	}
	if norm := floats.Norm(values, 2); norm > 0 {
		floats.Scale(1/norm, values)
	}
	return Vector{Indices: indices, Values: values}
}

// TransformAll applies Transform to every document.
func (m *Model) TransformAll(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for i, doc := range docs {
		out[i] = m.Transform(doc)
	}
	return out
}
