package docstore

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Encode converts a struct with json tags into document data.
func Encode(v any) (Data, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

// Decode fills v from document data.
func Decode(d Data, v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Merge returns a copy of base with patch's top-level keys applied.
func Merge(base, patch Data) Data {
	out := make(Data, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}

// Clone deep-copies document data through JSON.
func Clone(d Data) Data {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return Merge(nil, d)
	}
	var out Data
	if err := json.Unmarshal(b, &out); err != nil {
		return Merge(nil, d)
	}
	return out
}
