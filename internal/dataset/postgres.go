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
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TFMV/OrganMatchPro/internal/profile"
)

// Querier is the subset of pgxpool.Pool used to read a table.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the reference dataset from a Postgres table.
type PostgresSource struct {
	DB    Querier
	Table string
}

// NewPostgresSource creates a PostgresSource reading table through db.
func NewPostgresSource(db Querier, table string) *PostgresSource {
	return &PostgresSource{DB: db, Table: table}
}

// Describe names the source in logs.
func (s *PostgresSource) Describe() string {
	return "postgres:" + s.Table
}

// Load selects every row of the table in physical order.
func (s *PostgresSource) Load(ctx context.Context) (*Table, error) {
	if s.Table == "" {
		return nil, fmt.Errorf("%w: no table configured", ErrMissingDataset)
	}
	query := fmt.Sprintf("SELECT * FROM %s", pgx.Identifier{s.Table}.Sanitize())
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrMissingDataset, s.Table, err)
	}
	defer rows.Close()

	table := &Table{}
	for _, fd := range rows.FieldDescriptions() {
		table.Columns = append(table.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = stringify(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table, nil
}

// stringify renders a column value the way a CSV export would.
func stringify(v any) string {
	if valuer, ok := v.(driver.Valuer); ok {
		inner, err := valuer.Value()
		if err != nil {
			return ""
		}
		v = inner
	}
	s, _ := profile.Coerce(v)
	return s
}
