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
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

// tieTolerance widens the second search pass so points at exactly the k-th
// distance are never lost to rounding.
const tieTolerance = 1e-9

// refPoint is a reference vector placed in the k-d tree.
type refPoint struct {
	id     int
	coords []float64
}

func (p refPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(refPoint)
	return p.coords[d] - q.coords[d]
}

func (p refPoint) Dims() int { return len(p.coords) }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p refPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(refPoint)
	var sum float64
	for i, v := range p.coords {
		d := v - q.coords[i]
		sum += d * d
	}
	return sum
}

type refPoints []refPoint

func (p refPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p refPoints) Len() int                      { return len(p) }
func (p refPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}
func (p refPoints) Pivot(d kdtree.Dim) int {
	return refPlane{refPoints: p, Dim: d}.Pivot()
}

type refPlane struct {
	refPoints
	kdtree.Dim
}

func (p refPlane) Less(i, j int) bool {
	return p.refPoints[i].coords[p.Dim] < p.refPoints[j].coords[p.Dim]
}
func (p refPlane) Swap(i, j int) {
	p.refPoints[i], p.refPoints[j] = p.refPoints[j], p.refPoints[i]
}
func (p refPlane) Slice(start, end int) kdtree.SortSlicer {
	p.refPoints = p.refPoints[start:end]
	return p
}
func (p refPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Neighbor is one search hit.
type Neighbor struct {
	ID       int
	Distance float64
}

// Index holds the reference vectors and records and answers exact k-nearest
// neighbor queries. It is immutable after NewIndex returns.
type Index struct {
	dim     int
	vectors []tfidf.Vector
	records []dataset.Record
	tree    *kdtree.Tree
}

// NewIndex builds an index over vectors of dimension dim. Record i must carry ID i.
func NewIndex(dim int, vectors []tfidf.Vector, records []dataset.Record) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("index has %d vectors but %d records", len(vectors), len(records))
	}

	pts := make(refPoints, len(vectors))
	for i, v := range vectors {
		if records[i].ID != i {
			return nil, fmt.Errorf("record at position %d has id %d", i, records[i].ID)
		}
		if err := v.Validate(dim); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		pts[i] = refPoint{id: i, coords: v.Dense(dim)}
	}

	ix := &Index{dim: dim, vectors: vectors, records: records}
	if len(pts) > 0 {
		ix.tree = kdtree.New(pts, false)
	}
	return ix, nil
}

// Len returns the number of reference records.
func (ix *Index) Len() int { return len(ix.records) }

// Dim returns the vector dimension.
func (ix *Index) Dim() int { return ix.dim }

// Record returns the reference record with the given ID.
func (ix *Index) Record(id int) dataset.Record { return ix.records[id] }

// Vector returns the reference vector with the given ID.
func (ix *Index) Vector(id int) tfidf.Vector { return ix.vectors[id] }

// Search returns the k records closest to q by Euclidean distance, ordered by
// distance then ID. k is clamped to the index size.
func (ix *Index) Search(q tfidf.Vector, k int) ([]Neighbor, error) {
	if err := q.Validate(ix.dim); err != nil {
		return nil, fmt.Errorf("%w: query %v", ErrIndexUnavailable, err)
	}
	if k > len(ix.records) {
		k = len(ix.records)
	}
	if k <= 0 || ix.tree == nil {
		return []Neighbor{}, nil
	}

	query := refPoint{id: -1, coords: q.Dense(ix.dim)}

	// First pass finds the k-th smallest distance, second pass collects every
	// point within it so ties at the boundary resolve by ID.
	nk := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(nk, query)
	bound := 0.0
	for _, cd := range nk.Heap {
		if cd.Comparable != nil && cd.Dist > bound {
			bound = cd.Dist
		}
	}

	dk := kdtree.NewDistKeeper(bound + tieTolerance)
	ix.tree.NearestSet(dk, query)

	hits := make([]Neighbor, 0, len(dk.Heap))
	for _, cd := range dk.Heap {
		if cd.Comparable == nil {
			continue
		}
		hits = append(hits, Neighbor{ID: cd.Comparable.(refPoint).id, Distance: cd.Dist})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Distance = math.Sqrt(hits[i].Distance)
	}
	return hits, nil
}
