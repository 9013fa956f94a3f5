package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
)

func newKeyAndAddress(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return priv, base58.Encode(pub)
}

func TestVerify_ValidSignature(t *testing.T) {
	v := NewEd25519Verifier()
	priv, address := newKeyAndAddress(t)

	message := []byte("onboard:addr1:1704067200000")
	sig := ed25519.Sign(priv, message)

	if !v.Verify(address, message, sig) {
		t.Error("Valid signature should verify")
	}
}

func TestVerify_WrongMessage(t *testing.T) {
	v := NewEd25519Verifier()
	priv, address := newKeyAndAddress(t)

	sig := ed25519.Sign(priv, []byte("original message"))

	if v.Verify(address, []byte("tampered message"), sig) {
		t.Error("Signature over a different message must not verify")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	v := NewEd25519Verifier()
	priv, _ := newKeyAndAddress(t)
	_, otherAddress := newKeyAndAddress(t)

	message := []byte("message")
	sig := ed25519.Sign(priv, message)

	if v.Verify(otherAddress, message, sig) {
		t.Error("Signature must not verify under another key")
	}
}

func TestVerify_MalformedInputs(t *testing.T) {
	v := NewEd25519Verifier()
	priv, address := newKeyAndAddress(t)
	message := []byte("message")
	sig := ed25519.Sign(priv, message)

	cases := []struct {
		name    string
		address string
		sig     []byte
	}{
		{"not base58", "0OIl+/", sig},
		{"empty address", "", sig},
		{"short key", base58.Encode([]byte{1, 2, 3}), sig},
		{"empty signature", address, nil},
		{"truncated signature", address, sig[:32]},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(tc.address, message, tc.sig) {
				t.Error("Malformed input must verify as false")
			}
		})
	}
}
