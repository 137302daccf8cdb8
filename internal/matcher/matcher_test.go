package matcher

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

var scenarioRows = []map[string]string{
	{"city": "Seattle", "gender": "M", "race": "White", "age": "30", "blood_group": "AB", "rh_factor": "Neg", "smoke": "No", "drug": "No", "alcohol": "No", "avg_sleep": "7"},
	{"city": "Boston", "gender": "F", "race": "Black", "age": "45", "blood_group": "O", "rh_factor": "Pos", "smoke": "Yes", "drug": "No", "alcohol": "No", "avg_sleep": "5"},
	{"city": "Seattle", "gender": "M", "race": "White", "age": "31", "blood_group": "AB", "rh_factor": "Neg", "smoke": "No", "drug": "No", "alcohol": "No", "avg_sleep": "8"},
}

func scenarioEngine(t testing.TB, withIndex bool) *Engine {
	t.Helper()
	schema := profile.DefaultSchema()
	enc := profile.NewEncoder(schema)

	records := make([]dataset.Record, len(scenarioRows))
	docs := make([]string, len(scenarioRows))
	for i, row := range scenarioRows {
		records[i] = dataset.Record{ID: i, SourceRow: i + 1, Attributes: row}
		docs[i] = enc.Encode(records[i].Profile())
		records[i].Document = docs[i]
	}

	opts := tfidf.Options{MaxFeatures: 200, MaxDF: 1, MinDF: 0, StopWords: "english", Delimiter: ","}
	model, vectors, err := tfidf.NewVectorizer(opts).FitTransform(docs)
	require.NoError(t, err)

	var index *Index
	if withIndex {
		index, err = NewIndex(model.Size(), vectors, records)
		require.NoError(t, err)
	}
	engine, err := NewEngine(schema, model, index)
	require.NoError(t, err)
	return engine
}

func matchIDs(res Result) []int {
	ids := make([]int, len(res.Matches))
	for i, m := range res.Matches {
		ids[i] = m.ID
	}
	return ids
}

func TestFindMatchesScenario(t *testing.T) {
	engine := scenarioEngine(t, true)
	query := profile.Profile{"city": "Seattle", "blood_group": "AB", "organ": "Kidney"}

	res, err := engine.FindMatches(query, 2)
	require.NoError(t, err)
	assert.False(t, res.Degenerate)
	assert.Equal(t, []int{0, 2}, matchIDs(res))
	assert.Equal(t, res.Matches[0].Distance, res.Matches[1].Distance)
	assert.Equal(t, "Seattle,M,White,30,AB,Neg,No,No,No,7", res.Matches[0].Record.Document)

	all, err := engine.FindMatches(query, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, matchIDs(all))
	assert.Greater(t, all.Matches[2].Distance, all.Matches[1].Distance)
	assert.InDelta(t, math.Sqrt2, all.Matches[2].Distance, 1e-12)
	assert.Greater(t, all.Matches[0].Similarity, 0.0)
	assert.Equal(t, 0.0, all.Matches[2].Similarity)
}

func TestFindMatchesCapAndOrdering(t *testing.T) {
	engine := scenarioEngine(t, true)
	queries := []profile.Profile{
		{"city": "Seattle", "blood_group": "AB", "organ": "Kidney"},
		{"city": "Boston", "smoke": true},
		{"race": "White", "age": 31},
		{"city": "Atlantis"},
	}

	for _, q := range queries {
		for n := 1; n <= 6; n++ {
			res, err := engine.FindMatches(q, n)
			require.NoError(t, err)
			want := n
			if want > engine.IndexSize() {
				want = engine.IndexSize()
			}
			if len(res.Matches) != want {
				t.Errorf("FindMatches(%v, %d) returned %d matches, want %d", q, n, len(res.Matches), want)
			}
			for i := 1; i < len(res.Matches); i++ {
				prev, cur := res.Matches[i-1], res.Matches[i]
				if prev.Distance > cur.Distance || (prev.Distance == cur.Distance && prev.ID > cur.ID) {
					t.Errorf("FindMatches(%v, %d) out of order at %d", q, n, i)
				}
			}
		}
	}
}

func TestFindMatchesDegenerate(t *testing.T) {
	engine := scenarioEngine(t, true)

	res, err := engine.FindMatches(profile.Profile{"city": "Atlantis", "organ": "Kidney"}, 3)
	require.NoError(t, err)
	assert.True(t, res.Degenerate)
	assert.ElementsMatch(t, []int{0, 1, 2}, matchIDs(res))
	for _, m := range res.Matches {
		assert.InDelta(t, 1.0, m.Distance, 1e-12)
		assert.Equal(t, 0.0, m.Similarity)
	}
}

func TestFindMatchesErrors(t *testing.T) {
	engine := scenarioEngine(t, true)
	noIndex := scenarioEngine(t, false)
	query := profile.Profile{"city": "Seattle"}

	tests := []struct {
		name    string
		engine  *Engine
		profile profile.Profile
		n       int
		want    error
	}{
		{"Zero matches", engine, query, 0, ErrInvalidArgument},
		{"Negative matches", engine, query, -3, ErrInvalidArgument},
		{"Nil profile", engine, nil, 5, ErrInvalidArgument},
		{"Empty profile", engine, profile.Profile{}, 5, ErrMalformedQuery},
		{"Only unknown keys", engine, profile.Profile{"favorite_color": "blue"}, 5, ErrMalformedQuery},
		{"Only empty values", engine, profile.Profile{"city": "  ", "race": nil}, 5, ErrMalformedQuery},
		{"No index", noIndex, query, 5, ErrIndexUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.engine.FindMatches(tt.profile, tt.n)
			if !errors.Is(err, tt.want) {
				t.Errorf("FindMatches() error = %v, want %v", err, tt.want)
			}
			if len(res.Matches) != 0 {
				t.Errorf("FindMatches() returned partial results with an error")
			}
		})
	}
}

func TestFindMatchesDeterministic(t *testing.T) {
	engine := scenarioEngine(t, true)
	query := profile.Profile{"city": "Seattle", "blood_group": "AB"}
	first, err := engine.FindMatches(query, 3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := engine.FindMatches(query, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFindMatchesConcurrent(t *testing.T) {
	engine := scenarioEngine(t, true)
	query := profile.Profile{"city": "Seattle", "blood_group": "AB", "organ": "Kidney"}
	want, err := engine.FindMatches(query, 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.FindMatches(query, 3)
			if err != nil {
				errs <- err
				return
			}
			if len(got.Matches) != len(want.Matches) || got.Matches[0].ID != want.Matches[0].ID {
				errs <- errors.New("concurrent query returned a different result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEmptyIndex(t *testing.T) {
	base := scenarioEngine(t, false)
	index, err := NewIndex(base.Model().Size(), nil, nil)
	require.NoError(t, err)
	engine, err := NewEngine(base.Schema(), base.Model(), index)
	require.NoError(t, err)

	res, err := engine.FindMatches(profile.Profile{"city": "Seattle"}, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.True(t, engine.Ready())
}

func TestCompatibilityScore(t *testing.T) {
	for _, withIndex := range []bool{true, false} {
		engine := scenarioEngine(t, withIndex)

		tests := []struct {
			name string
			a, b profile.Profile
			want float64
		}{
			{"Identical profiles", profile.Profile{"city": "Seattle", "blood_group": "AB"}, profile.Profile{"city": "Seattle", "blood_group": "AB"}, 1.0},
			{"Disjoint vocabulary", profile.Profile{"city": "Seattle"}, profile.Profile{"city": "Boston"}, 0.0},
			{"Unknown city", profile.Profile{"city": "Seattle"}, profile.Profile{"city": "Miami"}, 0.0},
			{"Both unknown", profile.Profile{"city": "Atlantis"}, profile.Profile{"city": "Atlantis"}, 0.0},
			{"Empty profile", profile.Profile{}, profile.Profile{"city": "Seattle"}, 0.0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := engine.CompatibilityScore(tt.a, tt.b); got != tt.want {
					t.Errorf("CompatibilityScore() = %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestCompatibilityScoreProperties(t *testing.T) {
	engine := scenarioEngine(t, true)
	profiles := []profile.Profile{
		{"city": "Seattle", "blood_group": "AB"},
		{"city": "Seattle", "race": "White", "age": 30},
		{"city": "Boston", "blood_group": "O", "smoke": true},
		{"rh_factor": "Neg", "race": "Black"},
		{"city": "Atlantis"},
	}

	for i, a := range profiles {
		self := engine.CompatibilityScore(a, a)
		_, v := engine.Vectorize(a)
		if v.IsZero() {
			assert.Equal(t, 0.0, self, "profile %d", i)
		} else {
			assert.Equal(t, 1.0, self, "profile %d", i)
		}
		for j, b := range profiles {
			ab := engine.CompatibilityScore(a, b)
			ba := engine.CompatibilityScore(b, a)
			assert.Equal(t, ab, ba, "profiles %d and %d", i, j)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	}

	partial := engine.CompatibilityScore(profiles[0], profiles[1])
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestNewEngineValidation(t *testing.T) {
	base := scenarioEngine(t, false)
	_, err := NewEngine(base.Schema(), nil, nil)
	assert.Error(t, err)

	index, err := NewIndex(base.Model().Size()+1, nil, nil)
	require.NoError(t, err)
	_, err = NewEngine(base.Schema(), base.Model(), index)
	assert.Error(t, err)

	schema := base.Schema()
	schema.Delimiter = ";"
	_, err = NewEngine(schema, base.Model(), nil)
	assert.Error(t, err)
}
