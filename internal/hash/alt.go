// alt.go - Poseidon and SHA256 compression variants.

package hash

import (
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	sha256 "github.com/minio/sha256-simd"

	"zklay/internal/field"
)

// poseidonHasher is the circomlib Poseidon permutation with two inputs.
type poseidonHasher struct{}

func (poseidonHasher) Kind() Kind           { return Poseidon }
func (poseidonHasher) Family() field.Family { return field.BN254 }

func (poseidonHasher) Compress(left, right []byte) []byte {
	p := field.BN254.Modulus()
	x := new(big.Int).SetBytes(left)
	y := new(big.Int).SetBytes(right)
	out, err := poseidon.Hash([]*big.Int{x.Mod(x, p), y.Mod(y, p)})
	if err != nil {
		// Inputs are reduced above, so the only failure mode is a bug.
		panic(err)
	}
	return field.Bytes32(out)
}

// sha256Hasher compresses sha256(left ‖ right) over 32-byte words. The raw
// digest is kept between compression steps and reduced once by Sum.
type sha256Hasher struct {
	family field.Family
}

func (sha256Hasher) Kind() Kind             { return SHA256 }
func (s sha256Hasher) Family() field.Family { return s.family }

func (s sha256Hasher) Compress(left, right []byte) []byte {
	p := s.family.Modulus()
	buf := make([]byte, 0, 2*field.ByteLen)
	buf = append(buf, word(left, p)...)
	buf = append(buf, word(right, p)...)
	sum := sha256.Sum256(buf)
	return sum[:]
}
