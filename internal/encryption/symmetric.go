// symmetric.go - Additive symmetric encryption of a single field element.
//
// The hidden balance is stored as (r, v + H(secret, r)). A ciphertext with
// both components zero is the empty balance and decrypts to 0.

package encryption

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"zklay/internal/field"
	"zklay/internal/params"
)

// ErrDecryption is returned for ciphertexts that cannot be opened.
var ErrDecryption = errors.New("decryption failed")

// SCT is a symmetric ciphertext.
type SCT struct {
	R  *big.Int
	CT *big.Int
}

// EmptySCT is the ciphertext of an account that never held a balance.
func EmptySCT() *SCT {
	return &SCT{R: new(big.Int), CT: new(big.Int)}
}

// Empty reports whether s is the empty-balance sentinel.
func (s *SCT) Empty() bool {
	return s == nil || (isZero(s.R) && isZero(s.CT))
}

// List returns (r, ct) in statement order.
func (s *SCT) List() []*big.Int {
	if s.Empty() {
		return []*big.Int{new(big.Int), new(big.Int)}
	}
	return []*big.Int{s.R, s.CT}
}

type sctJSON struct {
	R  string `json:"r"`
	CT string `json:"ct"`
}

func (s SCT) MarshalJSON() ([]byte, error) {
	l := s.List()
	return json.Marshal(sctJSON{R: field.Hex(l[0]), CT: field.Hex(l[1])})
}

func (s *SCT) UnmarshalJSON(data []byte) error {
	var raw sctJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r, err := field.ParseHex(raw.R)
	if err != nil {
		return errors.Wrap(err, "r")
	}
	ct, err := field.ParseHex(raw.CT)
	if err != nil {
		return errors.Wrap(err, "ct")
	}
	s.R, s.CT = r, ct
	return nil
}

// Symmetric encrypts balances under a user secret.
type Symmetric struct {
	p      *params.Params
	secret *big.Int
}

func NewSymmetric(p *params.Params, secret *big.Int) *Symmetric {
	return &Symmetric{p: p, secret: new(big.Int).Set(secret)}
}

// Encrypt hides v under a fresh nonce.
func (s *Symmetric) Encrypt(v *big.Int) (*SCT, error) {
	r, err := s.p.Random()
	if err != nil {
		return nil, errors.Wrap(err, "draw nonce")
	}
	ct := new(big.Int).Add(v, s.p.H(s.secret, r))
	return &SCT{R: r, CT: ct.Mod(ct, s.p.Prime())}, nil
}

// Decrypt opens ct. The empty sentinel decrypts to 0.
func (s *Symmetric) Decrypt(ct *SCT) (*big.Int, error) {
	if ct.Empty() {
		return new(big.Int), nil
	}
	if ct.R == nil || ct.CT == nil {
		return nil, errors.Wrap(ErrDecryption, "missing component")
	}
	v := new(big.Int).Sub(ct.CT, s.p.H(s.secret, ct.R))
	return v.Mod(v, s.p.Prime()), nil
}

func isZero(x *big.Int) bool { return x == nil || x.Sign() == 0 }
