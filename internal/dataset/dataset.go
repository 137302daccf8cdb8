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

package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/TFMV/OrganMatchPro/internal/profile"
)

var (
	// ErrMissingDataset is returned when the reference dataset cannot be found.
	ErrMissingDataset = errors.New("reference dataset missing")
	// ErrNoUsableRows is returned when normalization leaves no row to train on.
	ErrNoUsableRows = errors.New("reference dataset has no usable rows")
)

// Table is a raw tabular dataset as read from a source.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Source loads the raw reference dataset.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	Describe() string
}

// Record is one usable row of the reference dataset. ID is its position in the
// reference index and SourceRow its 1-based data row in the source.
type Record struct {
	ID         int               `json:"id"`
	SourceRow  int               `json:"source_row"`
	Attributes map[string]string `json:"attributes"`
	Extra      map[string]string `json:"extra,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	Document   string            `json:"document"`
}

// Profile returns the record attributes as a query profile.
func (r Record) Profile() profile.Profile {
	p := make(profile.Profile, len(r.Attributes))
	for k, v := range r.Attributes {
		p[k] = v
	}
	return p
}

// Options controls the normalization pass.
type Options struct {
	DropColumns   []string
	OutcomeColumn string
}

// Dataset is the normalized reference dataset.
type Dataset struct {
	Records []Record
	// Skipped counts source rows without any usable attribute.
	Skipped int
}

// Documents returns the document of every record in ID order.
func (d *Dataset) Documents() []string {
	docs := make([]string, len(d.Records))
	for i, r := range d.Records {
		docs[i] = r.Document
	}
	return docs
}

// Normalize applies the per-column normalization pass and builds a document for
// every row. Columns listed in DropColumns are discarded, the outcome column is
// carried through untouched, columns outside the schema are kept as Extra and
// every other value is cleaned the same way query values are.
func Normalize(table *Table, schema profile.Schema, opts Options) (*Dataset, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, ErrNoUsableRows
	}

	drop := make(map[string]bool, len(opts.DropColumns))
	for _, c := range opts.DropColumns {
		drop[c] = true
	}

	enc := profile.NewEncoder(schema)
	ds := &Dataset{}
	for rowIdx, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", rowIdx+1, len(row), len(table.Columns))
		}

		rec := Record{
			SourceRow:  rowIdx + 1,
			Attributes: make(map[string]string),
		}
		for colIdx, col := range table.Columns {
			if drop[col] {
				continue
			}
			raw := row[colIdx]
			if col == opts.OutcomeColumn {
				rec.Outcome = raw
				continue
			}
			value := profile.NormalizeValue(raw, schema.Delimiter)
			if value == "" {
				continue
			}
			if key, ok := schema.KeyForColumn(col); ok {
				rec.Attributes[key] = value
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[col] = value
		}

		rec.Document = enc.Encode(rec.Profile())
		if rec.Document == "" {
			ds.Skipped++
			continue
		}
		rec.ID = len(ds.Records)
		ds.Records = append(ds.Records, rec)
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, none with a schema attribute", ErrNoUsableRows, len(table.Rows))
	}
	return ds, nil
}
