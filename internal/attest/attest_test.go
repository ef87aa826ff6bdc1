package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"ChainSnap/internal/identity"
)

// srSign signs payload under context with a fresh sr25519 key.
func srSign(t *testing.T, payload, context []byte) (identity.Identity, []byte) {
	t.Helper()

	sk, pk, err := schnorrkel.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	sig, err := sk.Sign(schnorrkel.NewSigningContext(context, payload))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	encoded := sig.Encode()

	return identity.Identity(pk.Encode()), encoded[:]
}

func expectKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()

	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want VerificationError", err)
	}

	if verr.Kind != kind {
		t.Fatalf("kind = %s, want %s", verr.Kind, kind)
	}
}

func TestSr25519VerifiesAndRejectsFlips(t *testing.T) {
	payload := []byte("abc")
	context := []byte("substrate")
	signer, sig := srSign(t, payload, context)

	v := NewVerifier("")

	ok, err := v.Verify(payload, signer, sig, context)
	if err != nil || !ok {
		t.Fatalf("valid signature: ok=%v err=%v", ok, err)
	}

	// Bytes of the last position carry the schnorrkel marker, so flipping
	// them is a malformed signature rather than a mismatch.
	for i := range len(sig) - 1 {
		flipped := append([]byte(nil), sig...)
		flipped[i] ^= 0x01

		ok, err := v.Verify(payload, signer, flipped, context)
		if ok {
			t.Fatalf("flipped byte %d still verifies", i)
		}

		if err != nil {
			expectKind(t, err, MalformedSignature)
		}
	}
}

func TestSr25519ContextMatters(t *testing.T) {
	payload := []byte("usage report")
	signer, sig := srSign(t, payload, []byte("substrate"))

	v := NewVerifier("")

	ok, err := v.Verify(payload, signer, sig, []byte("other"))
	if err != nil || ok {
		t.Fatalf("wrong context: ok=%v err=%v", ok, err)
	}

	ok, err = v.Verify([]byte("usage repors"), signer, sig, []byte("substrate"))
	if err != nil || ok {
		t.Fatalf("wrong payload: ok=%v err=%v", ok, err)
	}
}

func TestSr25519MissingMarker(t *testing.T) {
	payload := []byte("abc")
	signer, sig := srSign(t, payload, []byte(DefaultContext))

	sig[63] &^= 0x80

	_, err := NewVerifier("").Verify(payload, signer, sig, []byte(DefaultContext))
	expectKind(t, err, MalformedSignature)
}

func TestSignatureLength(t *testing.T) {
	v := NewVerifier("")
	var signer identity.Identity

	for _, scheme := range []Scheme{SchemeSr25519, SchemeEd25519, SchemeECDSA} {
		_, err := v.VerifyScheme(scheme, []byte("abc"), signer, make([]byte, 10))
		expectKind(t, err, MalformedSignature)
	}
}

func TestVerifyAttestation(t *testing.T) {
	payload := []byte(`{"calls":12}`)
	signer, sig := srSign(t, payload, []byte(DefaultContext))

	v := NewVerifier("")

	ok, err := v.VerifyAttestation(UsageAttestation{
		Payload:   payload,
		Address:   signer.String(),
		Signature: "0x" + hex.EncodeToString(sig),
	})
	if err != nil || !ok {
		t.Fatalf("attestation: ok=%v err=%v", ok, err)
	}

	_, err = v.VerifyAttestation(UsageAttestation{Payload: payload, Address: "5notanaddress", Signature: hex.EncodeToString(sig)})
	expectKind(t, err, MalformedIdentity)

	_, err = v.VerifyAttestation(UsageAttestation{Payload: payload, Address: signer.String(), Signature: "0xzz"})
	expectKind(t, err, MalformedSignature)

	_, err = v.VerifyAttestation(UsageAttestation{Payload: payload, Address: signer.String(), Signature: hex.EncodeToString(sig), Scheme: "rsa"})
	expectKind(t, err, UnknownScheme)
}

func TestEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signer, _ := identity.FromBytes(pub)
	payload := []byte("abc")
	sig := ed25519.Sign(priv, payload)

	v := NewVerifier("")

	ok, err := v.VerifyScheme(SchemeEd25519, payload, signer, sig)
	if err != nil || !ok {
		t.Fatalf("valid ed25519: ok=%v err=%v", ok, err)
	}

	sig[0] ^= 0xff

	ok, err = v.VerifyScheme(SchemeEd25519, payload, signer, sig)
	if err != nil || ok {
		t.Fatalf("tampered ed25519: ok=%v err=%v", ok, err)
	}
}

func TestECDSA(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signer := identity.Identity(blake2b.Sum256(crypto.CompressPubkey(&key.PublicKey)))
	payload := []byte("abc")
	digest := blake2b.Sum256(payload)

	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewVerifier("")

	ok, err := v.VerifyScheme(SchemeECDSA, payload, signer, sig)
	if err != nil || !ok {
		t.Fatalf("valid ecdsa: ok=%v err=%v", ok, err)
	}

	// Legacy recovery ids are accepted.
	legacy := append([]byte(nil), sig...)
	legacy[64] += 27

	ok, err = v.VerifyScheme(SchemeECDSA, payload, signer, legacy)
	if err != nil || !ok {
		t.Fatalf("legacy v: ok=%v err=%v", ok, err)
	}

	ok, err = v.VerifyScheme(SchemeECDSA, []byte("abd"), signer, sig)
	if err != nil || ok {
		t.Fatalf("wrong payload: ok=%v err=%v", ok, err)
	}

	bad := append([]byte(nil), sig...)
	bad[64] = 5

	_, err = v.VerifyScheme(SchemeECDSA, payload, signer, bad)
	expectKind(t, err, MalformedSignature)
}

func TestParseScheme(t *testing.T) {
	tests := map[string]Scheme{"": SchemeSr25519, "SR25519": SchemeSr25519, " ed25519 ": SchemeEd25519, "ecdsa": SchemeECDSA}

	for in, want := range tests {
		got, err := ParseScheme(in)
		if err != nil || got != want {
			t.Errorf("ParseScheme(%q) = %q, %v", in, got, err)
		}
	}

	_, err := ParseScheme("rsa")
	expectKind(t, err, UnknownScheme)
}
