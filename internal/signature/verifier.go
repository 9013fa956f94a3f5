// Package signature verifies agent onboarding signatures. External
// addresses are base58-encoded ed25519 public keys; the signed message
// proves control of the address.
package signature

import (
	"crypto/ed25519"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Verifier checks that a signature over a message was produced by the
// holder of an external address.
type Verifier interface {
	Verify(address string, message, sig []byte) bool
}

// Ed25519Verifier implements Verifier for base58 ed25519 addresses.
type Ed25519Verifier struct{}

// NewEd25519Verifier creates a new ed25519 verifier.
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

// Verify reports whether sig is a valid ed25519 signature of message under
// the public key encoded in address. Malformed addresses and non-canonical
// points verify as false rather than erroring: the engine only consumes the
// boolean.
func (v *Ed25519Verifier) Verify(address string, message, sig []byte) bool {
	pub, err := base58.Decode(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}

	// Reject non-canonical key encodings before signature verification.
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return false
	}

	if len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

// Compile-time interface check.
var _ Verifier = (*Ed25519Verifier)(nil)
