// mimc.go - MiMC block cipher in Miyaguchi-Preneel mode (MiMC7 and MiMC31).
//
// Round constants come from an iterated keccak256 chain rooted at Seed. Round 0
// uses the constant 0, round i uses the i-th link of the chain.

package hash

import (
	"math/big"

	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"

	"zklay/internal/field"
)

// Seed is the ASCII seed of the round-constant chain.
const Seed = "mimc7_seed"

// Rounds returns the number of cipher rounds of a MiMC variant.
func Rounds(kind Kind) int {
	if kind == MiMC31 {
		return 51
	}
	return 91
}

// RoundConstants returns the unreduced constants used by each round. The first
// entry is always zero.
func RoundConstants(rounds int) []*big.Int {
	out := make([]*big.Int, rounds)
	out[0] = new(big.Int)
	c := keccak([]byte(Seed))
	for i := 1; i < rounds; i++ {
		c = keccak(field.Bytes32(c))
		out[i] = c
	}
	return out
}

func keccak(data []byte) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return new(big.Int).SetBytes(h.Sum(nil))
}

func newMiMC(kind Kind, family field.Family) Hasher {
	if family == field.BLS12381 {
		return newMiMCOver[bls12381fr.Element](kind, family)
	}
	return newMiMCOver[bn254fr.Element](kind, family)
}

type mimc[T any, PT field.Element[T]] struct {
	kind      Kind
	family    field.Family
	constants []T
}

func newMiMCOver[T any, PT field.Element[T]](kind Kind, family field.Family) *mimc[T, PT] {
	raw := RoundConstants(Rounds(kind))
	constants := make([]T, len(raw))
	for i, c := range raw {
		constants[i] = field.FromBig[T, PT](c)
	}
	return &mimc[T, PT]{kind: kind, family: family, constants: constants}
}

func (m *mimc[T, PT]) Kind() Kind           { return m.kind }
func (m *mimc[T, PT]) Family() field.Family { return m.family }

// Encrypt runs the MiMC permutation keyed by key on message.
func (m *mimc[T, PT]) Encrypt(message, key *T) T {
	var x, t T
	PT(&x).Set(message)
	for i := range m.constants {
		PT(&t).Add(&x, key)
		PT(&t).Add(&t, &m.constants[i])
		m.round(&x, &t)
	}
	PT(&x).Add(&x, key)
	return x
}

// round sets z = a^e where e is 7 or 31.
func (m *mimc[T, PT]) round(z, a *T) {
	var a2, a4, acc T
	PT(&a2).Square(a)
	PT(&a4).Square(&a2)
	if m.kind == MiMC31 {
		var a8, a16 T
		PT(&a8).Square(&a4)
		PT(&a16).Square(&a8)
		PT(&acc).Mul(&a16, &a8)
		PT(&acc).Mul(&acc, &a4)
		PT(&acc).Mul(&acc, &a2)
		PT(z).Mul(&acc, a)
		return
	}
	PT(&acc).Mul(&a4, &a2)
	PT(z).Mul(&acc, a)
}

func (m *mimc[T, PT]) Compress(left, right []byte) []byte {
	x := field.FromBig[T, PT](new(big.Int).SetBytes(left))
	y := field.FromBig[T, PT](new(big.Int).SetBytes(right))
	r := m.Encrypt(&x, &y)
	PT(&r).Add(&r, &x)
	PT(&r).Add(&r, &y)
	return field.Bytes32(field.ToBig[T, PT](&r))
}
