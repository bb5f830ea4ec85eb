package hash

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zklay/internal/field"
)

const (
	vecA = "2af03b0046e15e8f24cdf4515d07cdbc5546ccd73fef162d453c55c6a635f6ee"
	vecB = "2825a2f1be85b53051e3affe3f3d3f68ebc52e7c3adc18d6e869630b67fabf3d"
)

func hexInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 16)
	require.True(t, ok, "bad hex %s", s)
	return v
}

func TestGoldenVectors(t *testing.T) {
	vectors := map[Kind][3]string{
		MiMC7: {
			"2f81229fea90cc0b53ce8ea692be6993d9e6f8ea2fb56751b5d8cf4893f686fd",
			"161f68835e8f035b8254abccbaadbe9ebedd412340631207067829445fd56c4d",
			"155114ee487f5923c56174604de7a3f7e63b3f46562062b9111737427a91de07",
		},
		MiMC31: {
			"1ae0b8d37e64fbecf20e4aceb262ef0ef113f7a81808c07568e05684c515b0a8",
			"01944497ca5ddc3fab67579eec12e23851ebd3b3f606a9d999a8125a84332f1c",
			"0f3644363c41e14a2820a631397fa000d5afca5c7bd435f39b2242094bf871a1",
		},
		Poseidon: {
			"007af346e2d304279e79e0a9f3023f771294a78acb70e73f90afe27cad401e81",
			"115cc0f5e7d690413df64c6b9662e9cf2a3617f2743245519e19607a4417189a",
			"2a8076f26736efc1612a22ed625e49eb853af0aa395113acd9b75cee8274f8ae",
		},
	}
	inputs := [3][2]*big.Int{
		{big.NewInt(1), big.NewInt(1)},
		{big.NewInt(1), big.NewInt(2)},
		{hexInt(t, vecA), hexInt(t, vecB)},
	}

	for kind, want := range vectors {
		t.Run(kind.String(), func(t *testing.T) {
			h, err := New(kind, field.BN254)
			require.NoError(t, err)
			for i, in := range inputs {
				got := Ints(h, in[0], in[1])
				assert.Equal(t, want[i], hexString(got), "vector %d", i)
			}
		})
	}
}

func TestSHA256Vectors(t *testing.T) {
	h := Must(SHA256, field.BN254)
	want := []string{
		"c3c3a46684c07d12a9c238787df3049a6f258e7af203e5ddb66a8bd66637e108",
		"d6ba9329f8932c12192b37849f772104d20048f76434a3290512d9d814e4116f",
		"8cfe99f9081d64cfb7760e78c3191967149d5a9446acd13442e4123504bfb161",
	}
	pairs := [][2]*big.Int{
		{big.NewInt(1), big.NewInt(1)},
		{big.NewInt(1), big.NewInt(2)},
		{hexInt(t, vecA), hexInt(t, vecB)},
	}
	p := field.BN254.Modulus()
	for i, pair := range pairs {
		raw := h.Compress(field.Bytes32(pair[0]), field.Bytes32(pair[1]))
		require.Equal(t, want[i], new(big.Int).SetBytes(raw).Text(16))

		reduced := new(big.Int).Mod(hexInt(t, want[i]), p)
		require.Zero(t, reduced.Cmp(Ints(h, pair[0], pair[1])))
	}
}

func TestSumComposition(t *testing.T) {
	for _, kind := range []Kind{MiMC7, MiMC31, Poseidon, SHA256} {
		t.Run(kind.String(), func(t *testing.T) {
			h := Must(kind, field.BN254)
			a, b, c := big.NewInt(11), big.NewInt(22), big.NewInt(33)

			// single input hashes against itself
			require.Zero(t, Ints(h, a).Cmp(Ints(h, a, a)))

			// three inputs fold left to right
			ab := h.Compress(field.Bytes32(a), field.Bytes32(b))
			abc := new(big.Int).SetBytes(h.Compress(ab, field.Bytes32(c)))
			abc.Mod(abc, field.BN254.Modulus())
			require.Zero(t, abc.Cmp(Ints(h, a, b, c)))

			// byte and integer inputs agree
			viaBytes, err := Sum(h, field.Bytes32(a), b.Bytes(), uint64(33))
			require.NoError(t, err)
			require.Zero(t, viaBytes.Cmp(Ints(h, a, b, c)))
		})
	}
}

func TestSumErrors(t *testing.T) {
	h := Must(MiMC7, field.BN254)
	_, err := Sum(h)
	require.Error(t, err)
	_, err = Sum(h, "not a number")
	require.Error(t, err)
}

func TestOutputsReduced(t *testing.T) {
	p := field.BLS12381.Modulus()
	for _, kind := range []Kind{MiMC7, MiMC31, SHA256} {
		h := Must(kind, field.BLS12381)
		got := Ints(h, new(big.Int).Sub(p, big.NewInt(1)), big.NewInt(7))
		assert.Equal(t, -1, got.Cmp(p), kind.String())
	}
}

func TestPoseidonFamily(t *testing.T) {
	_, err := New(Poseidon, field.BLS12381)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("MiMC31")
	require.NoError(t, err)
	require.Equal(t, MiMC31, k)
	_, err = ParseKind("blake2")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestRoundConstants(t *testing.T) {
	c := RoundConstants(Rounds(MiMC7))
	require.Len(t, c, 91)
	require.Zero(t, c[0].Sign())
	require.Zero(t, keccak(field.Bytes32(keccak([]byte(Seed)))).Cmp(c[1]))
	require.Len(t, RoundConstants(Rounds(MiMC31)), 51)
}

func hexString(v *big.Int) string {
	return fmt.Sprintf("%064x", v)
}
