// Package attest verifies detached signatures on usage reports.
package attest

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"ChainSnap/internal/identity"
)

// Scheme names a signature scheme.
type Scheme string

const (
	SchemeSr25519 Scheme = "sr25519"
	SchemeEd25519 Scheme = "ed25519"
	SchemeECDSA   Scheme = "ecdsa"
)

// DefaultContext is the sr25519 signing context used by wallets.
const DefaultContext = "substrate"

// ParseScheme maps a scheme name to a Scheme; empty selects sr25519.
func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return SchemeSr25519, nil
	case SchemeSr25519, SchemeEd25519, SchemeECDSA:
		return s, nil
	default:
		return "", &VerificationError{Kind: UnknownScheme, Err: fmt.Errorf("unknown scheme %q", name)}
	}
}

// ErrorKind classifies malformed verification input.
type ErrorKind int

const (
	MalformedSignature ErrorKind = iota + 1
	MalformedIdentity
	UnknownScheme
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case MalformedSignature:
		return "malformed signature"
	case MalformedIdentity:
		return "malformed identity"
	case UnknownScheme:
		return "unknown scheme"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// VerificationError reports input that could not be checked at all.
// A well-formed signature that does not match is not an error.
type VerificationError struct {
	Kind ErrorKind // Kind classifies the failure
	Err  error     // Err is the underlying cause
}

// Error implements error.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// UsageAttestation is a signed usage report as received over HTTP.
type UsageAttestation struct {
	Payload   []byte // Payload is the signed data
	Address   string // Address is the signer's SS58 address or 0x hex key
	Signature string // Signature is hex encoded, 0x prefix optional
	Scheme    Scheme // Scheme selects the algorithm; empty means sr25519
}

// Verifier checks attestations under a fixed sr25519 signing context.
type Verifier struct {
	Context []byte // Context is the sr25519 domain separation label
}

// NewVerifier creates a verifier; an empty context selects DefaultContext.
func NewVerifier(context string) *Verifier {
	if context == "" {
		context = DefaultContext
	}

	return &Verifier{Context: []byte(context)}
}

// Verify checks an sr25519 signature over payload under context.
func (v *Verifier) Verify(payload []byte, signer identity.Identity, sig []byte, context []byte) (bool, error) {
	return verifySr25519(payload, signer, sig, context)
}

// VerifyScheme checks a signature with the given scheme.
// sr25519 uses the verifier's context; ed25519 and ecdsa have no context.
func (v *Verifier) VerifyScheme(scheme Scheme, payload []byte, signer identity.Identity, sig []byte) (bool, error) {
	switch scheme {
	case SchemeSr25519, "":
		return verifySr25519(payload, signer, sig, v.Context)
	case SchemeEd25519:
		return verifyEd25519(payload, signer, sig)
	case SchemeECDSA:
		return verifyECDSA(payload, signer, sig)
	default:
		return false, &VerificationError{Kind: UnknownScheme, Err: fmt.Errorf("unknown scheme %q", scheme)}
	}
}

// VerifyAttestation decodes the textual address and signature, then verifies.
func (v *Verifier) VerifyAttestation(a UsageAttestation) (bool, error) {
	signer, err := identity.Parse(a.Address)
	if err != nil {
		return false, &VerificationError{Kind: MalformedIdentity, Err: err}
	}

	sig, err := DecodeSignature(a.Signature)
	if err != nil {
		return false, err
	}

	return v.VerifyScheme(a.Scheme, a.Payload, signer, sig)
}

// DecodeSignature parses hex signature text with an optional 0x prefix.
func DecodeSignature(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")

	sig, err := hex.DecodeString(text)
	if err != nil {
		return nil, &VerificationError{Kind: MalformedSignature, Err: err}
	}

	if len(sig) == 0 {
		return nil, &VerificationError{Kind: MalformedSignature, Err: fmt.Errorf("empty signature")}
	}

	return sig, nil
}

func verifyEd25519(payload []byte, signer identity.Identity, sig []byte) (bool, error) {
	if len(sig) != ed25519.SignatureSize {
		return false, malformedLength(sig, ed25519.SignatureSize)
	}

	return ed25519.Verify(ed25519.PublicKey(signer[:]), payload, sig), nil
}

func malformedLength(sig []byte, want int) error {
	return &VerificationError{
		Kind: MalformedSignature,
		Err:  fmt.Errorf("signature is %d bytes, want %d", len(sig), want),
	}
}
