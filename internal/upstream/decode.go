package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeList normalizes the three shapes the upstream uses for collections: a bare list,
// a {"data": ...} envelope, or a single bare object. Empty and null bodies give an empty list.
func DecodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return out, nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		if data, ok := fields["data"]; ok {
			return DecodeList[T](data)
		}
		if len(fields) == 0 {
			return nil, nil
		}
		var one T
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return []T{one}, nil
	default:
		return nil, fmt.Errorf("unexpected upstream payload: %.32s", raw)
	}
}

// DecodeFirst returns the first element of a normalized collection, or nil when it is empty.
func DecodeFirst[T any](raw json.RawMessage) (*T, error) {
	items, err := DecodeList[T](raw)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}
