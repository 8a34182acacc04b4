package attest

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known hardhat/anvil dev keys, never used on a real network.
const (
	devKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	otherDevKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

func TestNewSigner_AcceptsOptionalPrefix(t *testing.T) {
	plain, err := NewSigner(devKey)
	require.NoError(t, err)
	prefixed, err := NewSigner("0x" + devKey)
	require.NoError(t, err)

	assert.Equal(t, plain.Address(), prefixed.Address())
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", plain.AddressHex())
}

func TestNewSigner_RejectsBadKey(t *testing.T) {
	_, err := NewSigner("not hex")
	assert.Error(t, err)

	_, err = NewSigner("abcd")
	assert.Error(t, err)
}

func TestAttest_VerifyRoundtrip(t *testing.T) {
	signer, err := NewSigner(devKey)
	require.NoError(t, err)

	context := []byte("s1|alice|m1")
	sig, err := signer.Attest(200, context)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	v := NewAddressVerifier(signer.Address())
	assert.True(t, v.Verify(sig, 200, context))

	// Any change to the covered facts invalidates the attestation.
	assert.False(t, v.Verify(sig, 201, context))
	assert.False(t, v.Verify(sig, 200, []byte("s1|alice|m2")))
}

func TestVerify_WrongAttestor(t *testing.T) {
	signer, err := NewSigner(otherDevKey)
	require.NoError(t, err)

	context := []byte("s1|alice|m1")
	sig, err := signer.Attest(200, context)
	require.NoError(t, err)

	trusted, err := NewSigner(devKey)
	require.NoError(t, err)
	v := NewAddressVerifier(trusted.Address())
	assert.False(t, v.Verify(sig, 200, context))
}

func TestVerify_MalformedSignature(t *testing.T) {
	v := NewAddressVerifier(common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))

	assert.False(t, v.Verify(nil, 200, []byte("ctx")))
	assert.False(t, v.Verify([]byte("short"), 200, []byte("ctx")))
	assert.False(t, v.Verify(make([]byte, 65), 200, []byte("ctx")))
}
