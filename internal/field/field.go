// field.go - Prime field families shared by the hash and curve layers.
//
// Arithmetic is delegated to the gnark-crypto fr.Element types. Callers at the
// package boundary deal in *big.Int values that are always reduced modulo the
// family's prime.

package field

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ByteLen is the fixed width of a serialized field element.
const ByteLen = 32

// Family selects the scalar field the protocol runs over.
type Family uint8

const (
	BN254 Family = iota
	BLS12381
)

var familyNames = map[Family]string{
	BN254:    "bn254",
	BLS12381: "bls12-381",
}

// ParseFamily accepts the configuration names of a curve family.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bn254", "bn256", "alt_bn128":
		return BN254, nil
	case "bls12-381", "bls12381", "bls12_381":
		return BLS12381, nil
	}
	return 0, fmt.Errorf("unknown field family %q", s)
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// Modulus returns a fresh copy of the family's prime.
func (f Family) Modulus() *big.Int {
	switch f {
	case BLS12381:
		return bls12381fr.Modulus()
	default:
		return bn254fr.Modulus()
	}
}

// Reduce returns x mod p as a new value.
func (f Family) Reduce(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, f.Modulus())
}

// Random draws a uniform element of [0, p).
func (f Family) Random() (*big.Int, error) {
	return rand.Int(rand.Reader, f.Modulus())
}

// Bytes32 encodes x as a 32-byte big-endian slice. x must fit in 256 bits.
func Bytes32(x *big.Int) []byte {
	out := make([]byte, ByteLen)
	return x.FillBytes(out)
}

// Element is satisfied by pointers to the gnark-crypto fr.Element types.
type Element[T any] interface {
	*T
	SetBigInt(*big.Int) *T
	BigInt(*big.Int) *big.Int
	SetUint64(uint64) *T
	SetZero() *T
	SetOne() *T
	Set(*T) *T
	Add(*T, *T) *T
	Sub(*T, *T) *T
	Mul(*T, *T) *T
	Square(*T) *T
	Double(*T) *T
	Neg(*T) *T
	Inverse(*T) *T
	Sqrt(*T) *T
	Equal(*T) bool
	IsZero() bool
	Cmp(*T) int
}

// FromBig converts x (reduced modulo p) into a field element.
func FromBig[T any, PT Element[T]](x *big.Int) T {
	var e T
	PT(&e).SetBigInt(x)
	return e
}

// ToBig converts a field element back into its canonical integer.
func ToBig[T any, PT Element[T]](e *T) *big.Int {
	return PT(e).BigInt(new(big.Int))
}

// Both fr types must satisfy the constraint.
var (
	_ = FromBig[bn254fr.Element, *bn254fr.Element]
	_ = FromBig[bls12381fr.Element, *bls12381fr.Element]
)

// Hex renders x as 64 lowercase hex digits without a prefix.
func Hex(x *big.Int) string {
	return fmt.Sprintf("%064x", x)
}

// ParseHex reads a hex integer with or without a 0x prefix.
func ParseHex(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", s)
	}
	return v, nil
}
