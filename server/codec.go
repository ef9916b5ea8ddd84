package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{MaxArrayElements: 1 << 20}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm

	encoding.RegisterCodec(Codec{})
}

// Codec carries messages as CBOR. It serves both as a Connect codec and
// as a gRPC codec registered under the "cbor" content subtype.
type Codec struct{}

// Name returns "cbor".
func (Codec) Name() string { return "cbor" }

// Marshal encodes v.
func (Codec) Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func (Codec) Unmarshal(data []byte, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("server: unmarshal message: %w", err)
	}
	return nil
}
