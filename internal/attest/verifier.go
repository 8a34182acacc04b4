package attest

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressVerifier accepts an attestation only if it recovers to a trusted
// attestor address. Implements settlement.Verifier.
type AddressVerifier struct {
	attestor common.Address
}

// NewAddressVerifier creates a verifier trusting the given attestor
func NewAddressVerifier(attestor common.Address) *AddressVerifier {
	return &AddressVerifier{attestor: attestor}
}

// Verify checks the attestation signature against the payout and context
func (v *AddressVerifier) Verify(attestation []byte, payout uint64, context []byte) bool {
	if len(attestation) != 65 {
		return false
	}

	sig := make([]byte, 65)
	copy(sig, attestation)

	// Adjust v value back
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := accounts.TextHash(message(payout, context))
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false
	}

	return crypto.PubkeyToAddress(*pubKey) == v.attestor
}
