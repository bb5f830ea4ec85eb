package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("BN256")
	require.NoError(t, err)
	require.Equal(t, BN254, f)

	f, err = ParseFamily("bls12-381")
	require.NoError(t, err)
	require.Equal(t, BLS12381, f)

	_, err = ParseFamily("secp256k1")
	require.Error(t, err)
}

func TestModulus(t *testing.T) {
	bn, _ := new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
	bls, _ := new(big.Int).SetString("52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)
	require.Zero(t, bn.Cmp(BN254.Modulus()))
	require.Zero(t, bls.Cmp(BLS12381.Modulus()))

	// callers get a copy
	BN254.Modulus().SetInt64(0)
	require.Zero(t, bn.Cmp(BN254.Modulus()))
}

func TestHexRoundTrip(t *testing.T) {
	x := big.NewInt(0xabcdef)
	s := Hex(x)
	require.Len(t, s, 64)

	for _, in := range []string{s, "0x" + s, "abcdef"} {
		got, err := ParseHex(in)
		require.NoError(t, err)
		require.Zero(t, x.Cmp(got))
	}
	_, err := ParseHex("0x")
	require.Error(t, err)
	_, err = ParseHex("zz")
	require.Error(t, err)
}

func TestElementConversion(t *testing.T) {
	p := BN254.Modulus()
	over := new(big.Int).Add(p, big.NewInt(5))
	require.Equal(t, []byte{5}, BN254.Reduce(over).Bytes())
	require.Len(t, Bytes32(big.NewInt(1)), ByteLen)

	r, err := BLS12381.Random()
	require.NoError(t, err)
	require.Equal(t, -1, r.Cmp(BLS12381.Modulus()))
}
