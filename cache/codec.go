package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/blockjit/compiler"
)

// encMode encodes canonically so equal values give equal bytes, which
// key derivation depends on.
var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// MarshalScript serializes a compiled script to CBOR bytes.
func MarshalScript(s *compiler.CompiledScript) ([]byte, error) {
	return encMode.Marshal(s)
}

// UnmarshalScript deserializes a compiled script from CBOR bytes.
func UnmarshalScript(data []byte) (*compiler.CompiledScript, error) {
	var s compiler.CompiledScript
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cache: unmarshal script: %w", err)
	}
	return &s, nil
}
