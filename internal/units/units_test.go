package units

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWeiConversion(t *testing.T) {
	oneEther := uint256.MustFromDecimal("1000000000000000000")
	u, err := ToZklayUnits(oneEther)
	require.NoError(t, err)
	require.Equal(t, uint64(unitsPerEther), u.Uint64())

	wei, err := FromZklayUnits(u)
	require.NoError(t, err)
	require.True(t, wei.Eq(oneEther))

	_, err = ToZklayUnits(uint256.NewInt(WeiPerUnit + 1))
	require.True(t, errors.Is(err, ErrPrecision))

	max := new(uint256.Int).SetAllOne()
	_, err = FromZklayUnits(max)
	require.Error(t, err)
}

func TestParseEther(t *testing.T) {
	u, err := ParseEther("1.5")
	require.NoError(t, err)
	require.Equal(t, uint64(150_000_000), u.Uint64())

	u, err = ParseEther("0.00000001")
	require.NoError(t, err)
	require.Equal(t, uint64(1), u.Uint64())

	_, err = ParseEther("0.000000001")
	require.True(t, errors.Is(err, ErrPrecision))

	_, err = ParseEther("-1")
	require.Error(t, err)
	_, err = ParseEther("abc")
	require.Error(t, err)
}

func TestEtherString(t *testing.T) {
	require.Equal(t, "1.5", EtherString(big.NewInt(150_000_000)))
	require.Equal(t, "0", EtherString(big.NewInt(0)))
	require.Equal(t, "0.00000001", EtherString(big.NewInt(1)))
}
