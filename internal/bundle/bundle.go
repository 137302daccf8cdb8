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

package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

// FormatVersion identifies the on-disk layout written by Save.
const FormatVersion = "organmatch-bundle/1"

// ErrInvalidBundle is returned when a bundle is missing, corrupt, partial or
// built for a different schema.
var ErrInvalidBundle = errors.New("invalid artifact bundle")

var (
	bucketMeta       = []byte("meta")
	bucketVocabulary = []byte("vocabulary")
	bucketVectors    = []byte("vectors")
	bucketRecords    = []byte("records")

	keyVersion     = []byte("version")
	keySchema      = []byte("schema")
	keyFingerprint = []byte("fingerprint")
	keyOptions     = []byte("options")
	keyCreatedAt   = []byte("created_at")
	keyTerms       = []byte("terms")
	keyRecords     = []byte("records")
)

// Bundle is everything the serving process needs: the fitted model, the reference
// vectors and the reference records, all built from one corpus.
type Bundle struct {
	Schema    profile.Schema
	Model     *tfidf.Model
	Vectors   []tfidf.Vector
	Records   []dataset.Record
	CreatedAt time.Time
}

// Info summarizes a bundle for health reporting.
type Info struct {
	Version     string    `json:"version"`
	Fingerprint string    `json:"schema_fingerprint"`
	Terms       int       `json:"terms"`
	Records     int       `json:"records"`
	CreatedAt   time.Time `json:"created_at"`
}

// Info returns the bundle summary.
func (b *Bundle) Info() Info {
	info := Info{
		Version:     FormatVersion,
		Fingerprint: b.Schema.Fingerprint(),
		Records:     len(b.Records),
		CreatedAt:   b.CreatedAt,
	}
	if b.Model != nil {
		info.Terms = b.Model.Size()
	}
	return info
}

type vocabEntry struct {
	Term string
	IDF  float64
}

// Save writes b to path atomically: the bundle is built in a temporary file in the
// same directory and renamed into place once complete.
func Save(path string, b *Bundle) (err error) {
	if b == nil || b.Model == nil {
		return errors.New("bundle has no model")
	}
	if len(b.Vectors) != len(b.Records) {
		return fmt.Errorf("bundle has %d vectors but %d records", len(b.Vectors), len(b.Records))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temporary bundle: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	db, err := bbolt.Open(tmpPath, 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("unable to open temporary bundle: %w", err)
	}
	if err = db.Update(func(tx *bbolt.Tx) error { return write(tx, b) }); err != nil {
		db.Close()
		return fmt.Errorf("unable to write bundle: %w", err)
	}
	if err = db.Close(); err != nil {
		return fmt.Errorf("unable to close bundle: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("unable to move bundle into place: %w", err)
	}
	return nil
}

func write(tx *bbolt.Tx, b *Bundle) error {
	meta, err := tx.CreateBucket(bucketMeta)
	if err != nil {
		return err
	}
	schemaJSON, err := json.Marshal(b.Schema)
	if err != nil {
		return err
	}
	optsJSON, err := json.Marshal(b.Model.Options())
	if err != nil {
		return err
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	for k, v := range map[string]string{
		string(keyVersion):     FormatVersion,
		string(keySchema):      string(schemaJSON),
		string(keyFingerprint): b.Schema.Fingerprint(),
		string(keyOptions):     string(optsJSON),
		string(keyCreatedAt):   createdAt.Format(time.RFC3339Nano),
		string(keyTerms):       strconv.Itoa(b.Model.Size()),
		string(keyRecords):     strconv.Itoa(len(b.Records)),
	} {
		if err := meta.Put([]byte(k), []byte(v)); err != nil {
			return err
		}
	}

	vocab, err := tx.CreateBucket(bucketVocabulary)
	if err != nil {
		return err
	}
	idf := b.Model.IDF()
	for i, term := range b.Model.Terms() {
		data, err := encodeGob(vocabEntry{Term: term, IDF: idf[i]})
		if err != nil {
			return err
		}
		if err := vocab.Put(itob(i), data); err != nil {
			return err
		}
	}

	vectors, err := tx.CreateBucket(bucketVectors)
	if err != nil {
		return err
	}
	for i, v := range b.Vectors {
		data, err := encodeGob(v)
		if err != nil {
			return err
		}
		if err := vectors.Put(itob(i), data); err != nil {
			return err
		}
	}

	records, err := tx.CreateBucket(bucketRecords)
	if err != nil {
		return err
	}
	for i, r := range b.Records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := records.Put(itob(i), data); err != nil {
			return err
		}
	}
	return nil
}

// vectorTolerance bounds the per-component drift accepted between a stored vector
// and the one recomputed from its record.
const vectorTolerance = 1e-12

// Load opens the bundle at path read-only and validates it against expected.
// Every failure wraps ErrInvalidBundle.
func Load(path string, expected profile.Schema) (*Bundle, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidBundle, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	db, err := bbolt.Open(path, 0o444, &bbolt.Options{ReadOnly: true, Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	defer db.Close()

	var b *Bundle
	err = db.View(func(tx *bbolt.Tx) error {
		var err error
		b, err = read(tx, expected)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return b, nil
}

func read(tx *bbolt.Tx, expected profile.Schema) (*Bundle, error) {
	meta := tx.Bucket(bucketMeta)
	vocab := tx.Bucket(bucketVocabulary)
	vectors := tx.Bucket(bucketVectors)
	records := tx.Bucket(bucketRecords)
	if meta == nil || vocab == nil || vectors == nil || records == nil {
		return nil, errors.New("missing bucket")
	}

	if v := string(meta.Get(keyVersion)); v != FormatVersion {
		return nil, fmt.Errorf("unsupported version %q, want %q", v, FormatVersion)
	}
	if fp := string(meta.Get(keyFingerprint)); fp != expected.Fingerprint() {
		return nil, fmt.Errorf("schema fingerprint %s does not match this build's %s", fp, expected.Fingerprint())
	}

	var schema profile.Schema
	if err := json.Unmarshal(meta.Get(keySchema), &schema); err != nil {
		return nil, fmt.Errorf("decoding schema: %v", err)
	}
	if schema.Fingerprint() != expected.Fingerprint() {
		return nil, errors.New("stored schema does not match its fingerprint")
	}
	var opts tfidf.Options
	if err := json.Unmarshal(meta.Get(keyOptions), &opts); err != nil {
		return nil, fmt.Errorf("decoding options: %v", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, string(meta.Get(keyCreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("decoding created_at: %v", err)
	}
	termCount, err := strconv.Atoi(string(meta.Get(keyTerms)))
	if err != nil {
		return nil, fmt.Errorf("decoding term count: %v", err)
	}
	recordCount, err := strconv.Atoi(string(meta.Get(keyRecords)))
	if err != nil {
		return nil, fmt.Errorf("decoding record count: %v", err)
	}

	if n := vocab.Stats().KeyN; n != termCount {
		return nil, fmt.Errorf("vocabulary holds %d terms, meta says %d", n, termCount)
	}
	terms := make([]string, termCount)
	idf := make([]float64, termCount)
	for i := 0; i < termCount; i++ {
		var e vocabEntry
		if err := decodeGob(vocab.Get(itob(i)), &e); err != nil {
			return nil, fmt.Errorf("decoding term %d: %v", i, err)
		}
		terms[i], idf[i] = e.Term, e.IDF
	}
	model, err := tfidf.NewModel(terms, idf, opts)
	if err != nil {
		return nil, err
	}

	if n := vectors.Stats().KeyN; n != recordCount {
		return nil, fmt.Errorf("vectors bucket holds %d entries, meta says %d", n, recordCount)
	}
	if n := records.Stats().KeyN; n != recordCount {
		return nil, fmt.Errorf("records bucket holds %d entries, meta says %d", n, recordCount)
	}

	b := &Bundle{
		Schema:    schema,
		Model:     model,
		Vectors:   make([]tfidf.Vector, recordCount),
		Records:   make([]dataset.Record, recordCount),
		CreatedAt: createdAt,
	}
	for i := 0; i < recordCount; i++ {
		data := records.Get(itob(i))
		if data == nil {
			return nil, fmt.Errorf("record %d missing", i)
		}
		if err := json.Unmarshal(data, &b.Records[i]); err != nil {
			return nil, fmt.Errorf("decoding record %d: %v", i, err)
		}
		if b.Records[i].ID != i {
			return nil, fmt.Errorf("record at position %d has id %d", i, b.Records[i].ID)
		}
		if err := decodeGob(vectors.Get(itob(i)), &b.Vectors[i]); err != nil {
			return nil, fmt.Errorf("decoding vector %d: %v", i, err)
		}
		if err := b.Vectors[i].Validate(termCount); err != nil {
			return nil, fmt.Errorf("vector %d: %v", i, err)
		}
		// Stored vectors must be what the stored model produces for the record.
		if want := model.Transform(b.Records[i].Document); !want.ApproxEqual(b.Vectors[i], vectorTolerance) {
			return nil, fmt.Errorf("vector %d was not produced by the stored vocabulary", i)
		}
	}
	return b, nil
}

func itob(i int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	if data == nil {
		return errors.New("entry missing")
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
