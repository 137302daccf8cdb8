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

package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SchemaVersion identifies the attribute layout compiled into this build.
const SchemaVersion = "v1"

// Attribute binds a profile key to the dataset column it is read from.
// Column is empty for attributes that only appear in query profiles.
type Attribute struct {
	Key    string `json:"key"`
	Column string `json:"column,omitempty"`
}

// Schema is the ordered attribute list shared by training and serving.
type Schema struct {
	Version    string      `json:"version"`
	Delimiter  string      `json:"delimiter"`
	Attributes []Attribute `json:"attributes"`
}

// DefaultSchema returns the attribute order used to build documents.
func DefaultSchema() Schema {
	return Schema{
		Version:   SchemaVersion,
		Delimiter: ",",
		Attributes: []Attribute{
			{Key: "city", Column: "City"},
			{Key: "gender", Column: "Gender"},
			{Key: "race", Column: "Race"},
			{Key: "age", Column: "Age"},
			{Key: "blood_group", Column: "Blood Type"},
			{Key: "rh_factor", Column: "PosNeg"},
			{Key: "organ"},
			{Key: "smoke", Column: "Smoke"},
			{Key: "drug", Column: "Drug"},
			{Key: "alcohol", Column: "Alcohol"},
			{Key: "avg_sleep", Column: "AvgSleep"},
		},
	}
}

// Keys returns the attribute keys in document order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		keys[i] = a.Key
	}
	return keys
}

// KeyForColumn maps a dataset column to its profile key.
func (s Schema) KeyForColumn(column string) (string, bool) {
	if column == "" {
		return "", false
	}
	for _, a := range s.Attributes {
		if a.Column == column {
			return a.Key, true
		}
	}
	return "", false
}

// Fingerprint hashes everything that affects document layout. Two schemas with the
// same fingerprint produce identical documents for identical profiles.
func (s Schema) Fingerprint() string {
	var b strings.Builder
	b.WriteString(s.Version)
	b.WriteByte(0)
	b.WriteString(s.Delimiter)
	for _, a := range s.Attributes {
		b.WriteByte(0)
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Column)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
