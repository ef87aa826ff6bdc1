package attest

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"ChainSnap/internal/identity"
)

// ecdsaSignatureSize is r ‖ s ‖ v.
const ecdsaSignatureSize = 65

// verifyECDSA recovers the secp256k1 key over blake2b-256(payload) and
// compares blake2b-256 of its compressed form to the identity.
func verifyECDSA(payload []byte, signer identity.Identity, sig []byte) (bool, error) {
	if len(sig) != ecdsaSignatureSize {
		return false, malformedLength(sig, ecdsaSignatureSize)
	}

	normalized := bytes.Clone(sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	if normalized[64] > 1 {
		return false, &VerificationError{Kind: MalformedSignature, Err: fmt.Errorf("invalid recovery id %d", sig[64])}
	}

	digest := blake2b.Sum256(payload)

	pub, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		// A well-formed signature that recovers no key simply does not verify.
		return false, nil
	}

	derived := blake2b.Sum256(crypto.CompressPubkey(pub))

	return identity.Identity(derived) == signer, nil
}
