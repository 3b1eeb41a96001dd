package postgres

import (
	"encoding/json"
	"fmt"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// marshalJSONB converts v to JSONB bytes, mapping a nil pointer to SQL NULL.
// The pointer parameter keeps typed nils from slipping through an interface
// and landing in the column as jsonb null.
func marshalJSONB[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}

// unmarshalJSONB decodes JSONB bytes into a fresh T. A NULL column and a
// literal jsonb null both decode to a nil pointer.
func unmarshalJSONB[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return &v, nil
}
