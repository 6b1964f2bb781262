package entry

import "encoding/json"

// Value is the opaque payload a client stores against a key. Rather than
// committing to a single native Go type (which would force us to guess at
// the client's intended JSON shape on every read), a Value carries only the
// raw encoded JSON bytes it was decoded from; callers that want a Go form
// call Decode. This mirrors the design note's "raw
// serialized-bytes blob with content type preserved" option.
type Value struct {
	raw json.RawMessage
}

// NewValue wraps an already-decoded Go value (map[string]any, string,
// float64, bool, nil, []any, ...) by re-marshaling it.
func NewValue(v any) (Value, error) {
	if rm, ok := v.(json.RawMessage); ok {
		return Value{raw: append(json.RawMessage(nil), rm...)}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: b}, nil
}

// Raw returns the underlying JSON bytes.
func (v Value) Raw() json.RawMessage {
	return v.raw
}

// Decode unmarshals the stored JSON into out.
func (v Value) Decode(out any) error {
	return json.Unmarshal(v.raw, out)
}

// MarshalJSON lets Value be embedded directly in a response struct without
// double-encoding.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON stores the raw bytes verbatim.
func (v *Value) UnmarshalJSON(data []byte) error {
	v.raw = append(json.RawMessage(nil), data...)
	return nil
}
