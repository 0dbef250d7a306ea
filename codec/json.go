package codec

import "encoding/json"

// JSON is the default codec. Entity data is schema-less JSON on the wire
// already, so this round-trips without surprises.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
