package note

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"zklay/internal/params"
)

func sample() *Note {
	return &Note{Du: big.NewInt(17), Dv: big.NewInt(1000), Addr: big.NewInt(0xdeadbeef)}
}

func TestBytesRoundTrip(t *testing.T) {
	n := sample()
	b := n.Bytes()
	require.Len(t, b, Size)
	require.Equal(t, byte(17), b[31])

	back, err := FromBytes(b)
	require.NoError(t, err)
	require.Zero(t, n.Du.Cmp(back.Du))
	require.Zero(t, n.Dv.Cmp(back.Dv))
	require.Zero(t, n.Addr.Cmp(back.Addr))
}

func TestFromBytesLength(t *testing.T) {
	for _, l := range []int{0, Size - 1, Size + 1} {
		_, err := FromBytes(make([]byte, l))
		require.True(t, errors.Is(err, ErrMalformedNote), "length %d", l)
	}
}

func TestCommitmentAndNullifier(t *testing.T) {
	p := params.Default()
	n := sample()

	cm := Commitment(p, n)
	require.Zero(t, p.H(n.Du, n.Dv, n.Addr).Cmp(cm))
	require.Zero(t, cm.Cmp(Commitment(p, n)))

	sk := big.NewInt(99)
	sn := Nullifier(p, cm, sk)
	require.Zero(t, p.H(cm, sk).Cmp(sn))
	require.Zero(t, sn.Cmp(Nullifier(p, cm, sk)))
	require.NotZero(t, sn.Cmp(Nullifier(p, cm, big.NewInt(100))))
}

func TestShortCommitment(t *testing.T) {
	require.Equal(t, "00000000", ShortCommitment(big.NewInt(1)))
	cm, _ := new(big.Int).SetString("2f81229fea90cc0b53ce8ea692be6993d9e6f8ea2fb56751b5d8cf4893f686fd", 16)
	require.Equal(t, "2f81229f", ShortCommitment(cm))
}

func TestDescriptionJSON(t *testing.T) {
	p := params.Default()
	n := sample()
	d := Description{Note: *n, Address: 42, Commitment: Commitment(p, n)}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "42", raw["address"])
	require.Contains(t, raw, "note")
	require.Contains(t, raw, "commitment")

	var back Description
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, uint64(42), back.Address)
	require.Zero(t, d.Commitment.Cmp(back.Commitment))
	require.Zero(t, n.Dv.Cmp(back.Note.Dv))

	err = json.Unmarshal([]byte(`{"note":{"du":"01","dv":"01","addr":"01"},"address":"x","commitment":"01"}`), &back)
	require.True(t, errors.Is(err, ErrMalformedNote))
}
