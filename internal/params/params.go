// params.go - Protocol parameters resolved once per client context.
//
// A Params value binds a field family to its hash and curve. It is created at
// startup from configuration and never mutated afterwards.

package params

import (
	"math/big"

	"github.com/pkg/errors"

	"zklay/internal/curve"
	"zklay/internal/field"
	"zklay/internal/hash"
)

// Params holds the field, hash and curve selection of a client context.
type Params struct {
	Family field.Family
	Hash   hash.Hasher
	Curve  curve.Curve
}

// New resolves the hash and curve for a family.
func New(kind hash.Kind, family field.Family) (*Params, error) {
	h, err := hash.New(kind, family)
	if err != nil {
		return nil, errors.Wrap(err, "resolve hash")
	}
	return &Params{
		Family: family,
		Hash:   h,
		Curve:  curve.New(family),
	}, nil
}

// Default is MiMC7 over BN254, the deployment default.
func Default() *Params {
	p, err := New(hash.MiMC7, field.BN254)
	if err != nil {
		panic(err)
	}
	return p
}

// H hashes one or more field elements with the configured hash.
func (p *Params) H(first *big.Int, rest ...*big.Int) *big.Int {
	return hash.Ints(p.Hash, first, rest...)
}

// Prime returns the field modulus.
func (p *Params) Prime() *big.Int {
	return p.Family.Modulus()
}

// Random draws a uniform non-zero field element.
func (p *Params) Random() (*big.Int, error) {
	for {
		v, err := p.Family.Random()
		if err != nil {
			return nil, errors.Wrap(err, "draw field element")
		}
		if v.Sign() != 0 {
			return v, nil
		}
	}
}
