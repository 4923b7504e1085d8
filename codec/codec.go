// Package codec turns typed values into the byte payloads the store keeps
// in its version chains, and back. Pair any Codec with KV for a typed
// front-end over the raw-byte core.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
