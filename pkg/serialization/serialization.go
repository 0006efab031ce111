// Package serialization encodes the messages exchanged between service
// instances, such as directory invalidation events.
package serialization

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

const (
	// JSONType is the default, human-readable format.
	JSONType = "json"
	// GobType is the compact Go-only format.
	GobType = "gob"
)

// Decoder reads one value from a stream. *json.Decoder and *gob.Decoder satisfy it.
type Decoder interface {
	Decode(v any) error
}

// Encoder writes one value to a stream. *json.Encoder and *gob.Encoder satisfy it.
type Encoder interface {
	Encode(v any) error
}

// Codec pairs the encoder and decoder constructors of one format.
type Codec struct {
	Type       string
	NewEncoder func(io.Writer) Encoder
	NewDecoder func(io.Reader) Decoder
}

var codecs = map[string]Codec{
	JSONType: {
		Type:       JSONType,
		NewEncoder: func(w io.Writer) Encoder { return json.NewEncoder(w) },
		NewDecoder: func(r io.Reader) Decoder { return json.NewDecoder(r) },
	},
	GobType: {
		Type:       GobType,
		NewEncoder: func(w io.Writer) Encoder { return gob.NewEncoder(w) },
		NewDecoder: func(r io.Reader) Decoder { return gob.NewDecoder(r) },
	},
}

// Lookup returns the codec for typ. An empty typ selects JSON.
func Lookup(typ string) (Codec, error) {
	if typ == "" {
		typ = JSONType
	}
	codec, ok := codecs[typ]
	if !ok {
		return Codec{}, fmt.Errorf("unsupported serialization type %q, want one of %v", typ, Types())
	}
	return codec, nil
}

// Types lists the supported serialization types in sorted order.
func Types() []string {
	types := make([]string, 0, len(codecs))
	for typ := range codecs {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
