package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLen is the raw length of an ed25519 public key.
const PubkeyLen = 32

// ValidatePubkey checks that s is a base58-encoded 32-byte public key.
func ValidatePubkey(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid base58 pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLen {
		return fmt.Errorf("pubkey %q decodes to %d bytes, want %d", s, len(raw), PubkeyLen)
	}
	return nil
}

// EncodePubkey renders a raw 32-byte key as base58.
func EncodePubkey(raw []byte) string {
	return base58.Encode(raw)
}
