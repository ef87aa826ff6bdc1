package attest

import (
	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"ChainSnap/internal/identity"
)

const sr25519SignatureSize = 64

func verifySr25519(payload []byte, signer identity.Identity, sig []byte, context []byte) (bool, error) {
	if len(sig) != sr25519SignatureSize {
		return false, malformedLength(sig, sr25519SignatureSize)
	}

	var raw [sr25519SignatureSize]byte
	copy(raw[:], sig)

	var signature schnorrkel.Signature
	if err := signature.Decode(raw); err != nil {
		return false, &VerificationError{Kind: MalformedSignature, Err: err}
	}

	pub, err := schnorrkel.NewPublicKey(signer)
	if err != nil {
		return false, &VerificationError{Kind: MalformedIdentity, Err: err}
	}

	ok, err := pub.Verify(&signature, schnorrkel.NewSigningContext(context, payload))
	if err != nil {
		return false, &VerificationError{Kind: MalformedIdentity, Err: err}
	}

	return ok, nil
}
