package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a reference to another resource. The backend sends references
// either as a bare id or as the populated document; both decode into a Ref
// with ID set, and Doc set only for the populated form.
type Ref[T any] struct {
	ID  string
	Doc *T
}

// RefID returns an unresolved reference.
func RefID[T any](id string) Ref[T] {
	return Ref[T]{ID: id}
}

// Resolved reports whether the referenced document was populated.
func (r Ref[T]) Resolved() bool {
	return r.Doc != nil
}

// IsZero reports whether the reference is empty.
func (r Ref[T]) IsZero() bool {
	return r.ID == "" && r.Doc == nil
}

func (r *Ref[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = Ref[T]{}

	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	switch b[0] {
	case '"':
		return json.Unmarshal(b, &r.ID)
	case '{':
		var ids struct {
			ID  string `json:"id"`
			OID string `json:"_id"`
		}
		if err := json.Unmarshal(b, &ids); err != nil {
			return fmt.Errorf("decode reference id: %w", err)
		}
		doc := new(T)
		if err := json.Unmarshal(b, doc); err != nil {
			return fmt.Errorf("decode reference document: %w", err)
		}
		r.ID = ids.ID
		if r.ID == "" {
			r.ID = ids.OID
		}
		r.Doc = doc
		return nil
	default:
		return fmt.Errorf("decode reference: unexpected json %q", b)
	}
}

// MarshalJSON writes the bare id. Writes never send populated documents.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}
