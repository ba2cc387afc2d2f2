// Package wire defines the recognition request/response messages and the
// deterministic CBOR codec used to carry them over gRPC.
package wire

import (
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
)

// Name is the gRPC content subtype carried on every call.
const Name = "cbor"

// RecognitionRequest carries the opaque image blob to a peer.
type RecognitionRequest struct {
	Image []byte `cbor:"image"`
}

// RecognitionResponse carries the peer's recognized text.
type RecognitionResponse struct {
	RecognizedText string `cbor:"recognizedText"`
}

// Codec marshals messages as canonical CBOR. It satisfies the gRPC
// encoding.Codec interface and is installed per connection with
// grpc.ForceCodec and grpc.ForceServerCodec.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec returns a deterministic CBOR codec. Decoding rejects duplicate map
// keys and caps byte strings at maxBytes (0 keeps the library default; the
// library rejects caps below 16).
func NewCodec(maxBytes int) (*Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	opts := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}
	if maxBytes > 0 {
		opts.MaxByteStringLen = maxBytes
	}
	dm, err := opts.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return &Codec{enc: em, dec: dm}, nil
}

// Name returns the content subtype.
func (*Codec) Name() string { return Name }

// Marshal encodes v.
func (c *Codec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

// Unmarshal decodes data into v.
func (c *Codec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
