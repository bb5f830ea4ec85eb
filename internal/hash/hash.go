// hash.go - Pluggable two-to-one field hash used for commitments, nullifiers and keys.
//
// A Hasher is resolved once from configuration (kind + field family). All
// downstream code only depends on the compression function and on Sum, which
// folds an arbitrary number of inputs left to right.

package hash

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"zklay/internal/field"
)

// ErrUnsupported is returned for hash/field combinations that have no implementation.
var ErrUnsupported = errors.New("unsupported hash configuration")

// Kind names a hash variant.
type Kind uint8

const (
	MiMC7 Kind = iota
	MiMC31
	Poseidon
	SHA256
)

var kindNames = map[Kind]string{
	MiMC7:    "mimc7",
	MiMC31:   "mimc31",
	Poseidon: "poseidon",
	SHA256:   "sha256",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a configuration string (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupported, "unknown hash %q", s)
}

// Hasher is a two-to-one compression function over 32-byte big-endian words.
type Hasher interface {
	Kind() Kind
	Family() field.Family
	// Compress hashes two words. Inputs of any length are read as big-endian
	// integers; the output is always ByteLen bytes.
	Compress(left, right []byte) []byte
}

// New returns the hasher for kind over the given field family.
func New(kind Kind, family field.Family) (Hasher, error) {
	switch kind {
	case MiMC7, MiMC31:
		return newMiMC(kind, family), nil
	case Poseidon:
		if family != field.BN254 {
			return nil, errors.Wrapf(ErrUnsupported, "poseidon over %s", family)
		}
		return poseidonHasher{}, nil
	case SHA256:
		return sha256Hasher{family: family}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "hash kind %d", kind)
}

// Must is New for statically known configurations.
func Must(kind Kind, family field.Family) Hasher {
	h, err := New(kind, family)
	if err != nil {
		panic(err)
	}
	return h
}

// Sum hashes inputs: h = H(in0, in1); h = H(h, in_i) for the rest. A single
// input is hashed against itself. Inputs may be []byte, *big.Int, big.Int,
// int, int64 or uint64; each is reduced modulo the field prime first. The
// result is reduced modulo the field prime.
func Sum(h Hasher, inputs ...any) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, errors.New("hash: no inputs")
	}
	p := h.Family().Modulus()
	words := make([][]byte, len(inputs))
	for i, in := range inputs {
		v, err := toInt(in)
		if err != nil {
			return nil, errors.Wrapf(err, "hash input %d", i)
		}
		words[i] = field.Bytes32(v.Mod(v, p))
	}
	if len(words) == 1 {
		words = append(words, words[0])
	}
	acc := h.Compress(words[0], words[1])
	for _, w := range words[2:] {
		acc = h.Compress(acc, w)
	}
	out := new(big.Int).SetBytes(acc)
	return out.Mod(out, p), nil
}

// Ints is Sum restricted to integer inputs, which cannot fail.
func Ints(h Hasher, first *big.Int, rest ...*big.Int) *big.Int {
	inputs := make([]any, 0, len(rest)+1)
	inputs = append(inputs, first)
	for _, r := range rest {
		inputs = append(inputs, r)
	}
	out, err := Sum(h, inputs...)
	if err != nil {
		panic(err)
	}
	return out
}

func toInt(in any) (*big.Int, error) {
	switch v := in.(type) {
	case []byte:
		return new(big.Int).SetBytes(v), nil
	case *big.Int:
		if v == nil {
			return nil, errors.New("nil integer")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	}
	return nil, errors.Errorf("unsupported input type %T", in)
}

// word left-pads b to ByteLen; longer inputs are reduced modulo p.
func word(b []byte, p *big.Int) []byte {
	if len(b) == field.ByteLen {
		return b
	}
	if len(b) > field.ByteLen {
		v := new(big.Int).SetBytes(b)
		return field.Bytes32(v.Mod(v, p))
	}
	out := make([]byte, field.ByteLen)
	copy(out[field.ByteLen-len(b):], b)
	return out
}
