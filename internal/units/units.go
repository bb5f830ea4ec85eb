// units.go - Conversion between wei and zklay units.
//
// Amounts inside notes and hidden balances are counted in zklay units of
// 10^10 wei so that they fit comfortably in a field element and in the
// circuit's range checks. On-chain values stay in wei.

package units

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// WeiPerUnit is the number of wei in one zklay unit.
const WeiPerUnit = 10_000_000_000

// unitsPerEther is 10^18 / WeiPerUnit.
const unitsPerEther = 100_000_000

var ErrPrecision = errors.New("amount is not a whole number of zklay units")

var weiPerUnit = uint256.NewInt(WeiPerUnit)

// ToZklayUnits converts wei to zklay units. Fractions of a unit are rejected.
func ToZklayUnits(wei *uint256.Int) (*uint256.Int, error) {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(wei, weiPerUnit, r)
	if !r.IsZero() {
		return nil, errors.Wrapf(ErrPrecision, "%s wei", wei.Dec())
	}
	return q, nil
}

// FromZklayUnits converts zklay units back to wei.
func FromZklayUnits(units *uint256.Int) (*uint256.Int, error) {
	wei, overflow := new(uint256.Int).MulOverflow(units, weiPerUnit)
	if overflow {
		return nil, errors.Errorf("%s zklay units overflow uint256 wei", units.Dec())
	}
	return wei, nil
}

// ParseEther reads a decimal ether amount such as "1.5" into zklay units.
func ParseEther(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse amount %q", s)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("negative amount %q", s)
	}
	scaled := d.Mul(decimal.New(unitsPerEther, 0))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Wrapf(ErrPrecision, "%s ether", s)
	}
	u, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, errors.Errorf("amount %q overflows", s)
	}
	return u, nil
}

// EtherString renders zklay units as an ether amount.
func EtherString(units *big.Int) string {
	return decimal.NewFromBigInt(units, 0).Div(decimal.New(unitsPerEther, 0)).String()
}

// Big converts units into a field-ready integer.
func Big(u *uint256.Int) *big.Int {
	return u.ToBig()
}
