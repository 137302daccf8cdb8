package tfidf

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioCorpus = []string{
	"Seattle,M,White,30,AB,Neg,No,No,No,7",
	"Boston,F,Black,45,O,Pos,Yes,No,No,5",
	"Seattle,M,White,31,AB,Neg,No,No,No,8",
}

func scenarioOptions() Options {
	return Options{MaxFeatures: 200, MaxDF: 1.0, MinDF: 0, StopWords: "english", Delimiter: ","}
}

func TestTokenize(t *testing.T) {
	english, err := StopWordList("english")
	require.NoError(t, err)
	tok := NewTokenizer(",", english)

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Reference row",
			input:    "Seattle,M,White,30,AB,Neg,No,No,No,7",
			expected: []string{"seattle", "white", "30", "ab", "neg"},
		},
		{
			name:     "Query document",
			input:    "Seattle,AB,Kidney",
			expected: []string{"seattle", "ab", "kidney"},
		},
		{
			name:     "Multi word value",
			input:    "New York,O",
			expected: []string{"new", "york"},
		},
		{
			name:     "Empty document",
			input:    "",
			expected: nil,
		},
		{
			name:     "Only delimiters",
			input:    ",,,",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tok.Tokenize(tt.input)
			if len(result) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStopWordList(t *testing.T) {
	words, err := StopWordList("english")
	require.NoError(t, err)
	assert.Contains(t, words, "no")
	assert.Contains(t, words, "the")

	none, err := StopWordList("none")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = StopWordList("klingon")
	assert.Error(t, err)
}

func TestFitVocabulary(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		expected []string
	}{
		{
			name:     "Unbounded",
			opts:     scenarioOptions(),
			expected: []string{"30", "31", "45", "ab", "black", "boston", "neg", "pos", "seattle", "white", "yes"},
		},
		{
			name: "Max features keeps most frequent terms",
			opts: func() Options {
				o := scenarioOptions()
				o.MaxFeatures = 3
				return o
			}(),
			expected: []string{"ab", "neg", "seattle"},
		},
		{
			name: "Max df drops common terms",
			opts: func() Options {
				o := scenarioOptions()
				o.MaxDF = 0.5
				return o
			}(),
			expected: []string{"30", "31", "45", "black", "boston", "pos", "yes"},
		},
		{
			name: "Min df drops rare terms",
			opts: func() Options {
				o := scenarioOptions()
				o.MinDF = 0.5
				return o
			}(),
			expected: []string{"ab", "neg", "seattle", "white"},
		},
		{
			name: "Stop words disabled",
			opts: func() Options {
				o := scenarioOptions()
				o.StopWords = "none"
				o.MinDF = 0.5
				return o
			}(),
			expected: []string{"ab", "neg", "no", "seattle", "white"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewVectorizer(tt.opts).Fit(scenarioCorpus)
			require.NoError(t, err)
			if !reflect.DeepEqual(model.Terms(), tt.expected) {
				t.Errorf("Terms() = %v, want %v", model.Terms(), tt.expected)
			}
			if tt.opts.MaxFeatures > 0 && model.Size() > tt.opts.MaxFeatures {
				t.Errorf("Size() = %d exceeds max_features %d", model.Size(), tt.opts.MaxFeatures)
			}
		})
	}
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		docs []string
		want error
	}{
		{"Empty corpus", scenarioOptions(), nil, ErrEmptyCorpus},
		{"Default pruning on a tiny corpus", DefaultOptions(), scenarioCorpus, ErrEmptyVocabulary},
		{"Only stop words", scenarioOptions(), []string{"the,and", "no,of"}, ErrEmptyVocabulary},
		{"Max df below min df", Options{MaxDF: 0.1, MinDF: 0.5, StopWords: "english"}, scenarioCorpus, ErrInvalidOptions},
		{"Negative max features", Options{MaxFeatures: -1, MaxDF: 1, StopWords: "english"}, scenarioCorpus, ErrInvalidOptions},
		{"Unknown stop words", Options{MaxDF: 1, StopWords: "klingon"}, scenarioCorpus, ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVectorizer(tt.opts).Fit(tt.docs)
			if !errors.Is(err, tt.want) {
				t.Errorf("Fit() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSmoothedIDF(t *testing.T) {
	model, err := NewVectorizer(scenarioOptions()).Fit(scenarioCorpus)
	require.NoError(t, err)

	idf := model.IDF()
	seattle, ok := model.Lookup("seattle")
	require.True(t, ok)
	boston, ok := model.Lookup("boston")
	require.True(t, ok)

	assert.InDelta(t, math.Log(4.0/3.0)+1, idf[seattle], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, idf[boston], 1e-12)
	assert.Greater(t, idf[boston], idf[seattle])
}

func TestTransform(t *testing.T) {
	model, vectors, err := NewVectorizer(scenarioOptions()).FitTransform(scenarioCorpus)
	require.NoError(t, err)
	require.Len(t, vectors, len(scenarioCorpus))

	for i, v := range vectors {
		assert.InDelta(t, 1.0, v.Norm(), 1e-12, "row %d", i)
		for k := 1; k < len(v.Indices); k++ {
			assert.Less(t, v.Indices[k-1], v.Indices[k], "row %d indices must increase", i)
		}
		for _, x := range v.Values {
			assert.Greater(t, x, 0.0)
		}
	}

	t.Run("Out of vocabulary terms are ignored", func(t *testing.T) {
		a := model.Transform("Seattle,AB")
		b := model.Transform("Seattle,AB,Kidney")
		assert.True(t, a.Equal(b))
	})

	t.Run("Unknown document yields the zero vector", func(t *testing.T) {
		v := model.Transform("Atlantis,Kidney")
		assert.True(t, v.IsZero())
		assert.Equal(t, 0.0, v.Norm())
	})

	t.Run("Empty document yields the zero vector", func(t *testing.T) {
		assert.True(t, model.Transform("").IsZero())
	})

	t.Run("Deterministic", func(t *testing.T) {
		first := model.Transform(scenarioCorpus[0])
		for i := 0; i < 20; i++ {
			assert.True(t, first.Equal(model.Transform(scenarioCorpus[0])))
		}
	})

	t.Run("Dense expansion", func(t *testing.T) {
		dense := vectors[0].Dense(model.Size())
		assert.Len(t, dense, model.Size())
		col, _ := model.Lookup("seattle")
		assert.Greater(t, dense[col], 0.0)
		col, _ = model.Lookup("boston")
		assert.Equal(t, 0.0, dense[col])
	})
}

func TestNewModelValidation(t *testing.T) {
	opts := scenarioOptions()

	tests := []struct {
		name  string
		terms []string
		idf   []float64
	}{
		{"Empty", nil, nil},
		{"Length mismatch", []string{"ab", "cd"}, []float64{1}},
		{"Unsorted", []string{"cd", "ab"}, []float64{1, 1}},
		{"Duplicate", []string{"ab", "ab"}, []float64{1, 1}},
		{"Zero weight", []string{"ab"}, []float64{0}},
		{"NaN weight", []string{"ab"}, []float64{math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewModel(tt.terms, tt.idf, opts); err == nil {
				t.Errorf("NewModel(%v, %v) expected an error", tt.terms, tt.idf)
			}
		})
	}

	model, err := NewModel([]string{"ab", "seattle"}, []float64{1.5, 1.5}, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, model.Size())
	assert.Equal(t, opts, model.Options())
}

func TestVectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		v       Vector
		dim     int
		wantErr bool
	}{
		{"Zero vector", Vector{}, 3, false},
		{"Well formed", Vector{Indices: []int{0, 2}, Values: []float64{0.6, 0.8}}, 3, false},
		{"Length mismatch", Vector{Indices: []int{0, 1}, Values: []float64{1}}, 3, true},
		{"Unsorted indices", Vector{Indices: []int{2, 0}, Values: []float64{0.6, 0.8}}, 3, true},
		{"Duplicate index", Vector{Indices: []int{1, 1}, Values: []float64{0.6, 0.8}}, 3, true},
		{"Index beyond dimension", Vector{Indices: []int{3}, Values: []float64{1}}, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate(tt.dim)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVectorApproxEqual(t *testing.T) {
	v := Vector{Indices: []int{0, 2}, Values: []float64{0.6, 0.8}}

	assert.True(t, v.ApproxEqual(v, 0))
	assert.True(t, v.ApproxEqual(Vector{Indices: []int{0, 2}, Values: []float64{0.6 + 1e-14, 0.8}}, 1e-12))
	assert.False(t, v.ApproxEqual(Vector{Indices: []int{0, 2}, Values: []float64{0.61, 0.8}}, 1e-12))
	assert.False(t, v.ApproxEqual(Vector{Indices: []int{0, 1}, Values: []float64{0.6, 0.8}}, 1e-12))
	assert.False(t, v.ApproxEqual(Vector{}, 1e-12))
	assert.True(t, Vector{}.ApproxEqual(Vector{}, 0))
}
