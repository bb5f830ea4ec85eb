package snark

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zklay/internal/params"
)

// noteInputs builds a consistent statement and witness with native hashing.
func noteInputs(t *testing.T) (Statement, Witness) {
	t.Helper()
	p := params.Default()
	rnd := func() *big.Int {
		v, err := p.Random()
		require.NoError(t, err)
		return v
	}
	sk, du, addr := rnd(), rnd(), rnd()
	dv := big.NewInt(0)
	cm := p.H(du, dv, addr)
	sn := p.H(cm, sk)

	duNew, addrR := rnd(), rnd()
	dvNew := big.NewInt(25)
	cmNew := p.H(duNew, dvNew, addrR)

	stmt := NewStatement()
	stmt.Set("addr", addr)
	stmt.Set("sn", sn)
	stmt.Set("cm_", cmNew)
	stmt.SetArray("CT", big.NewInt(1), big.NewInt(2), big.NewInt(3))

	wit := NewWitness()
	wit.Set("cm", cm)
	wit.Set("du", du)
	wit.Set("dv", dv)
	wit.Set("sk", sk)
	wit.Set("du_", duNew)
	wit.Set("dv_", dvNew)
	wit.Set("addr_r", addrR)
	return stmt, wit
}

func TestNoteCircuitSolved(t *testing.T) {
	stmt, wit := noteInputs(t)
	var assignment NoteCircuit
	require.NoError(t, assignment.Assign(stmt, wit))
	require.NoError(t, test.IsSolved(&NoteCircuit{}, &assignment, ecc.BN254.ScalarField()))

	// a wrong nullifier is not satisfiable
	stmt.Set("sn", big.NewInt(7))
	var bad NoteCircuit
	require.NoError(t, bad.Assign(stmt, wit))
	require.Error(t, test.IsSolved(&NoteCircuit{}, &bad, ecc.BN254.ScalarField()))
}

func TestAssignMissingInput(t *testing.T) {
	stmt, wit := noteInputs(t)
	delete(wit.Scalars, "sk")
	var c NoteCircuit
	require.ErrorIs(t, c.Assign(stmt, wit), ErrMissingInput)
}

func TestGroth16ProveVerify(t *testing.T) {
	g := NewGroth16(nil, nil)
	require.NoError(t, g.Register(NoteCircuitName, NewNoteCircuit, KeyFiles{}))

	stmt, wit := noteInputs(t)
	proof, err := g.Prove(context.Background(), NoteCircuitName, stmt, wit)
	require.NoError(t, err)
	require.NoError(t, g.Verify(NoteCircuitName, stmt, proof))

	tampered := NewStatement()
	tampered.Inputs = stmt.Merge(NewInputs())
	tampered.Set("cm_", big.NewInt(1))
	require.ErrorIs(t, g.Verify(NoteCircuitName, tampered, proof), ErrInvalidProof)

	// round trip the proof through JSON and verify again
	raw, err := json.Marshal(proof)
	require.NoError(t, err)
	var decoded Proof
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, g.Verify(NoteCircuitName, stmt, &decoded))

	vk, err := g.VerificationKey(NoteCircuitName)
	require.NoError(t, err)
	// three public inputs plus the constant term
	assert.Len(t, vk.ABC, 4)
	raw, err = json.Marshal(vk)
	require.NoError(t, err)
	var vk2 VerificationKey
	require.NoError(t, json.Unmarshal(raw, &vk2))
	assert.True(t, vk.Alpha.Equal(&vk2.Alpha))
	assert.True(t, vk.Delta.Equal(&vk2.Delta))
}

func TestGroth16UnknownCircuit(t *testing.T) {
	g := NewGroth16(nil, nil)
	stmt, wit := noteInputs(t)
	_, err := g.Prove(context.Background(), "nope", stmt, wit)
	require.ErrorIs(t, err, ErrUnknownCircuit)
	_, err = g.VerificationKey("nope")
	require.ErrorIs(t, err, ErrUnknownCircuit)
}

func TestGroth16KeysOnDisk(t *testing.T) {
	dir := t.TempDir()
	files := KeyFiles{
		ProvingKey:       filepath.Join(dir, "note.pk"),
		VerifyingKey:     filepath.Join(dir, "note.vk"),
		ConstraintSystem: filepath.Join(dir, "note.r1cs"),
	}
	g := NewGroth16(nil, nil)
	require.NoError(t, g.Register(NoteCircuitName, NewNoteCircuit, files))
	for _, path := range []string{files.ProvingKey, files.VerifyingKey, files.ConstraintSystem} {
		_, err := os.Stat(path)
		require.NoError(t, err, path)
	}

	stmt, wit := noteInputs(t)
	proof, err := g.Prove(context.Background(), NoteCircuitName, stmt, wit)
	require.NoError(t, err)

	// a second service reuses the saved artefacts and accepts the proof
	other := NewGroth16(nil, nil)
	require.NoError(t, other.Register(NoteCircuitName, NewNoteCircuit, files))
	require.NoError(t, other.Verify(NoteCircuitName, stmt, proof))
}

func TestProveCancelled(t *testing.T) {
	g := NewGroth16(nil, nil)
	require.NoError(t, g.Register(NoteCircuitName, NewNoteCircuit, KeyFiles{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stmt, wit := noteInputs(t)
	_, err := g.Prove(ctx, NoteCircuitName, stmt, wit)
	require.ErrorIs(t, err, context.Canceled)
}

func TestInputsJSON(t *testing.T) {
	stmt, wit := noteInputs(t)
	merged := stmt.Merge(wit.Inputs)
	assert.Contains(t, merged.Names(), "addr_r")
	assert.Contains(t, merged.Names(), "CT")

	raw, err := json.Marshal(stmt)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	arr, ok := generic["CT"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, arr, 3)
	assert.Len(t, generic["sn"], 64)

	var back Statement
	require.NoError(t, json.Unmarshal(raw, &back))
	sn, err := back.Scalar("sn")
	require.NoError(t, err)
	want, _ := stmt.Scalar("sn")
	assert.Equal(t, 0, want.Cmp(sn))
	ct, err := back.Array("CT")
	require.NoError(t, err)
	assert.Equal(t, 0, ct[2].Cmp(big.NewInt(3)))

	require.Error(t, json.Unmarshal([]byte(`{"CT": {"5": "01"}}`), &back))
}
