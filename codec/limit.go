package codec

import "fmt"

// LimitCodec wraps another codec and rejects oversized payloads at Decode time
// without invoking the inner codec; Encode passes through unchanged.
// MaxDecode <= 0 disables the check.
//
// Put it in front of payloads that arrive from a shared near-cache provider
// or another node, where a corrupt length is cheaper to reject than to parse.
type LimitCodec[V any] struct {
	// Inner is the wrapped codec. Must be set.
	Inner interface {
		Encode(V) ([]byte, error)
		Decode([]byte) (V, error)
	}
	// MaxDecode is the largest payload length (in bytes) Decode accepts.
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
