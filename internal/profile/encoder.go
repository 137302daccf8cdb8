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

import "strings"

// Profile maps attribute keys to caller supplied values.
type Profile map[string]any

// Encoder turns profiles into documents following a fixed Schema.
type Encoder struct {
	schema Schema
}

// NewEncoder creates an Encoder for the given schema.
func NewEncoder(schema Schema) Encoder {
	return Encoder{schema: schema}
}

// Schema returns the schema the encoder follows.
func (e Encoder) Schema() Schema {
	return e.schema
}

// Encode joins the present attributes of p in schema order. Absent attributes are
// skipped, never replaced by a placeholder. Keys outside the schema are ignored.
func (e Encoder) Encode(p Profile) string {
	parts := make([]string, 0, len(e.schema.Attributes))
	for _, attr := range e.schema.Attributes {
		raw, ok := p[attr.Key]
		if !ok {
			continue
		}
		s, ok := Coerce(raw)
		if !ok {
			continue
		}
		s = NormalizeValue(s, e.schema.Delimiter)
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, e.schema.Delimiter)
}
