package tfidf

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptyCorpus is returned when Fit receives no documents.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmptyVocabulary is returned when no term survives pruning.
	ErrEmptyVocabulary = errors.New("no terms remain after pruning; lower min_df or raise max_df")
	// ErrInvalidOptions is returned for inconsistent vectorizer options.
	ErrInvalidOptions = errors.New("invalid vectorizer options")
)

// Options configures vocabulary fitting.
type Options struct {
	// MaxFeatures caps the vocabulary size. Zero means unbounded.
	MaxFeatures int `json:"max_features"`
	// MaxDF drops terms present in more than this fraction of documents.
	MaxDF float64 `json:"max_df"`
	// MinDF drops terms present in fewer than this fraction of documents.
	MinDF float64 `json:"min_df"`
	// StopWords names a built-in list, see StopWordList.
	StopWords string `json:"stop_words"`
	// Delimiter separates document fields.
	Delimiter string `json:"delimiter"`
}

// DefaultOptions returns the settings the reference model was trained with.
func DefaultOptions() Options {
	return Options{
		MaxFeatures: 200,
		MaxDF:       0.25,
		MinDF:       0.01,
		StopWords:   "english",
		Delimiter:   ",",
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.MaxFeatures < 0 {
		return fmt.Errorf("%w: max_features must be >= 0, got %d", ErrInvalidOptions, o.MaxFeatures)
	}
	if o.MaxDF <= 0 || o.MaxDF > 1 {
		return fmt.Errorf("%w: max_df must be in (0, 1], got %g", ErrInvalidOptions, o.MaxDF)
	}
	if o.MinDF < 0 || o.MinDF > 1 {
		return fmt.Errorf("%w: min_df must be in [0, 1], got %g", ErrInvalidOptions, o.MinDF)
	}
	if o.MaxDF < o.MinDF {
		return fmt.Errorf("%w: max_df %g is lower than min_df %g", ErrInvalidOptions, o.MaxDF, o.MinDF)
	}
	if _, err := StopWordList(o.StopWords); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// Vectorizer fits a Model from a document corpus.
type Vectorizer struct {
	opts Options
}

// NewVectorizer creates a new Vectorizer
func NewVectorizer(opts Options) *Vectorizer {
	return &Vectorizer{opts: opts}
}

// Fit learns the vocabulary and IDF weights of docs.
func (v *Vectorizer) Fit(docs []string) (*Model, error) {
	if err := v.opts.Validate(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	stopWords, _ := StopWordList(v.opts.StopWords)
	tokenizer := NewTokenizer(v.opts.Delimiter, stopWords)

	docFreq := make(map[string]int)
	termFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range tokenizer.Tokenize(doc) {
			termFreq[term]++
			if !seen[term] {
				docFreq[term]++
				seen[term] = true
			}
		}
	}

	n := float64(len(docs))
	low := v.opts.MinDF * n
	high := v.opts.MaxDF * n

	kept := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if float64(df) >= low && float64(df) <= high {
			kept = append(kept, term)
		}
	}

	if v.opts.MaxFeatures > 0 && len(kept) > v.opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if termFreq[kept[i]] != termFreq[kept[j]] {
				return termFreq[kept[i]] > termFreq[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.opts.MaxFeatures]
	}

	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}
	sort.Strings(kept)

	idf := make([]float64, len(kept))
	for i, term := range kept {
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	return NewModel(kept, idf, v.opts)
}

// FitTransform fits the vectorizer to the input documents and then transforms them
func (v *Vectorizer) FitTransform(docs []string) (*Model, []Vector, error) {
	model, err := v.Fit(docs)
	if err != nil {
		return nil, nil, err
	}
	return model, model.TransformAll(docs), nil
}
