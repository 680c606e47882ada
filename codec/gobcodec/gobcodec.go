// Package gobcodec implements the disktier.Codec collaborator using
// encoding/gob, the natural default for a Go-to-Go on-disk cache.
package gobcodec

import (
	"bytes"
	"encoding/gob"
)

// Codec encodes and decodes values with encoding/gob. Values containing
// interfaces or unexported fields must be registered with gob.Register by
// the caller before use, same as any other gob user.
type Codec struct{}

// Encode gob-encodes v.
func (Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode gob-decodes data into out, which must be a non-nil pointer.
func (Codec) Decode(data []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
