package accumulator

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/stretchr/testify/require"
)

func ints(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestPrimeTable(t *testing.T) {
	require.Len(t, smallPrimes, 256)
	require.Equal(t, int64(3), smallPrimes[0].Int64())
	require.Equal(t, int64(5), smallPrimes[1].Int64())
	require.Equal(t, int64(1621), smallPrimes[255].Int64())
	for _, p := range smallPrimes {
		require.True(t, p.ProbablyPrime(10), p.String())
	}
}

func TestDefaultModulus(t *testing.T) {
	n := DefaultN()
	require.Equal(t, 2048, n.BitLen())
	require.Len(t, n.String(), 617)
}

func TestAccumulateInvariant(t *testing.T) {
	a, err := New(16)
	require.NoError(t, err)
	a.Add(ints(1, 2, 3, 4, 5)...)
	a.Add(big.NewInt(6))
	a.Accumulate()

	exp := big.NewInt(1)
	for _, p := range a.PrimeGroup() {
		exp.Mul(exp, p)
	}
	for _, m := range a.Data.CmList {
		exp.Mul(exp, m)
	}
	want := new(big.Int).Exp(a.W, exp, a.N)
	require.Zero(t, want.Cmp(a.Data.ACC))

	// idempotent
	before := new(big.Int).Set(a.Data.ACC)
	a.Accumulate()
	require.Zero(t, before.Cmp(a.Data.ACC))
}

func TestProveMembership(t *testing.T) {
	a, err := New(DefaultSecLevel)
	require.NoError(t, err)
	a.Add(ints(1, 2, 3, 4, 5)...)
	a.Add(big.NewInt(6))
	a.Accumulate()
	bases := DefaultBases()

	for _, subset := range [][]*big.Int{ints(1, 2, 3), ints(6), ints(2, 4, 5, 6)} {
		proof, err := a.Compute(subset, bases)
		require.NoError(t, err)
		require.True(t, a.Verify(proof))
	}
}

func TestRejectNonMember(t *testing.T) {
	a, err := New(32)
	require.NoError(t, err)
	a.Add(ints(11, 13, 17)...)
	a.Accumulate()

	proof, err := a.Compute(ints(11, 19), DefaultBases())
	require.NoError(t, err)
	require.False(t, a.Verify(proof))

	// tampered response
	good, err := a.Compute(ints(13), DefaultBases())
	require.NoError(t, err)
	require.True(t, a.Verify(good))
	good.K = new(big.Int).Add(good.K, big.NewInt(1))
	require.False(t, a.Verify(good))

	require.False(t, a.Verify(nil))
	_, err = a.Compute(nil, DefaultBases())
	require.ErrorIs(t, err, ErrEmptySubset)
}

func TestAddAfterAccumulate(t *testing.T) {
	a, err := New(8)
	require.NoError(t, err)
	a.Add(big.NewInt(7))
	a.Accumulate()
	a.Add(big.NewInt(9))

	// 9 is not yet accumulated
	proof, err := a.Compute(ints(9), DefaultBases())
	require.NoError(t, err)
	require.False(t, a.Verify(proof))

	a.Accumulate()
	proof, err = a.Compute(ints(7, 9), DefaultBases())
	require.NoError(t, err)
	require.True(t, a.Verify(proof))
}

func TestLimbsAndCommit(t *testing.T) {
	require.Len(t, Limbs(big.NewInt(0)), 1)
	require.Len(t, Limbs(big.NewInt(5)), 1)

	v := new(big.Int).Lsh(big.NewInt(3), LimbBits) // limbs [0, 3]
	v.Add(v, big.NewInt(2))
	limbs := Limbs(v)
	require.Len(t, limbs, 2)
	require.Equal(t, int64(2), limbs[0].Int64())
	require.Equal(t, int64(3), limbs[1].Int64())

	bases := DefaultBases()
	c := Commit(bases, v, big.NewInt(0), big.NewInt(1))
	var want, t5 bn254.G1Affine
	t5.ScalarMultiplication(&bases[0], big.NewInt(5))
	want.Add(&t5, &bases[2])
	require.True(t, want.Equal(&c))
	require.True(t, c.IsOnCurve())
}

func TestPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acc.json")

	p, err := Open(path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "open must not write")

	// repeated opens without save see a fresh accumulator
	p.Add(big.NewInt(42))
	again, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, again.Data.CmList)

	p.Accumulate()
	require.NoError(t, p.Save())

	loaded, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, DefaultSecLevel, loaded.SecLevel)
	require.Len(t, loaded.Data.CmList, 1)
	require.Zero(t, p.Data.ACC.Cmp(loaded.Data.ACC))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, k := range []string{"W", "N", "SEC_LEV", "acc_data"} {
		require.Contains(t, fields, k)
	}

	proof, err := loaded.Compute(ints(42), DefaultBases())
	require.NoError(t, err)
	require.True(t, loaded.Verify(proof))
}

func TestProofJSON(t *testing.T) {
	a, err := New(8)
	require.NoError(t, err)
	a.Add(ints(5, 6)...)
	a.Accumulate()
	proof, err := a.Compute(ints(5), DefaultBases())
	require.NoError(t, err)

	data, err := json.Marshal(proof)
	require.NoError(t, err)
	require.Contains(t, string(data), `"C_sr":{"x":`)

	var back Proof
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, a.Verify(&back))
}

func TestOpenLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acc.json")
	p, err := OpenLevel(path, 8)
	require.NoError(t, err)
	require.Equal(t, 8, p.SecLevel)
	require.NoError(t, p.Save())

	// a saved accumulator keeps its level
	again, err := OpenLevel(path, 16)
	require.NoError(t, err)
	require.Equal(t, 8, again.SecLevel)

	_, err = OpenLevel(filepath.Join(t.TempDir(), "bad.json"), 1<<20)
	require.Error(t, err)
}

func TestSaveReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acc.json")
	p, err := OpenLevel(path, 8)
	require.NoError(t, err)
	p.Add(ints(3)...)
	p.Accumulate()
	require.NoError(t, p.Save())
	p.Add(ints(5)...)
	p.Accumulate()
	require.NoError(t, p.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary file may outlive Save")
	require.Equal(t, "acc.json", entries[0].Name())

	loaded, err := Open(path)
	require.NoError(t, err)
	require.Len(t, loaded.Data.CmList, 2)
	require.Zero(t, p.Data.ACC.Cmp(loaded.Data.ACC))

	// a missing directory fails before anything is written
	bad, err := OpenLevel(filepath.Join(dir, "missing", "acc.json"), 8)
	require.NoError(t, err)
	require.Error(t, bad.Save())
}
