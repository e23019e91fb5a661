package sqlite

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeFields serializes a field map for a BLOB column. Empty maps are
// stored as NULL.
func encodeFields(fields map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	b, err := msgpack.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	return b, nil
}

// decodeFields is the inverse of encodeFields. Integers come back as int64
// and floats as float64.
func decodeFields(b []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(b) == 0 {
		return fields, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	return fields, nil
}
