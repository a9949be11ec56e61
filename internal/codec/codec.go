// Package codec defines the opaque bytes <-> value boundary the rest of
// the engine treats as a black box. Queue and result backends only ever
// see []byte; encoding/decoding a Job or a result value goes through a
// Codec implementation.
package codec

// Codec encodes and decodes values over a restricted domain: primitives,
// ordered sequences, and named maps (i.e. anything JSON can represent).
// Implementations must round-trip a value unmarshaled from Encode back to
// an equivalent value via Decode into the same Go type.
type Codec interface {
	Name() string
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, out interface{}) error
}

// Default is the process-wide codec used when none is configured
// explicitly. It is a JSON codec, matching the encoding/json used
// pervasively for job payload/result columns in the reference stack.
func Default() Codec { return JSON{} }
