// Package jsoncodec implements the disktier.Codec collaborator using
// encoding/json, useful when stored values need to stay human-inspectable
// on disk or interoperate with non-Go readers of the sidecar files.
package jsoncodec

import "encoding/json"

// Codec encodes and decodes values with encoding/json.
type Codec struct{}

// Encode JSON-marshals v.
func (Codec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode JSON-unmarshals data into out, which must be a non-nil pointer.
func (Codec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}
