package docstore

import (
	"encoding/json"
	"fmt"
)

// Document is one collection's content: a single JSON object keyed by its
// declared top-level keys. The store is schema-agnostic beyond guaranteeing
// that every key present in the collection's default document exists after a
// successful read.
//
// Values hold the types produced by encoding/json (map[string]any, []any,
// float64, string, bool, nil). Use [Document.Decode] and [Document.Set] to
// move between those and typed records.
type Document map[string]any

// Clone returns a deep copy of the document via a JSON round-trip.
func (d Document) Clone() (Document, error) {
	var out Document

	err := roundTrip(d, &out)
	if err != nil {
		return nil, fmt.Errorf("cloning document: %w", err)
	}

	if out == nil {
		out = Document{}
	}

	return out, nil
}

// Decode unmarshals the value under key into v.
// A missing key leaves v untouched and returns nil.
func (d Document) Decode(key string, v any) error {
	raw, ok := d[key]
	if !ok {
		return nil
	}

	err := roundTrip(raw, v)
	if err != nil {
		return fmt.Errorf("decoding key %q: %w", key, err)
	}

	return nil
}

// Set stores v under key, normalized to plain JSON types so the document
// stays uniform regardless of what concrete type the caller passed in.
func (d Document) Set(key string, v any) error {
	var normalized any

	err := roundTrip(v, &normalized)
	if err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}

	d[key] = normalized

	return nil
}

// idRecord extracts just the identifier from an array entry.
type idRecord struct {
	ID int64 `json:"id"`
}

// NextID returns max(existing ids)+1 over the array-valued key, starting at 1
// for an empty or missing array. Identifier assignment is only safe when the
// caller runs inside a single [Store.Update] transaction; computing an ID from
// one read and appending in another loses updates under concurrency.
func (d Document) NextID(key string) (int64, error) {
	var records []idRecord

	err := d.Decode(key, &records)
	if err != nil {
		return 0, err
	}

	var maxID int64

	for _, r := range records {
		if r.ID > maxID {
			maxID = r.ID
		}
	}

	return maxID + 1, nil
}

// roundTrip copies in into out through JSON encoding.
func roundTrip(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}
