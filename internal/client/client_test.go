package client

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"zklay/internal/address"
	"zklay/internal/encryption"
	"zklay/internal/ledger"
	"zklay/internal/logging"
	"zklay/internal/params"
	"zklay/internal/snark"
	"zklay/internal/wallet"
)

type party struct {
	keys   *address.KeyPair
	wallet *wallet.Wallet
	syncer *wallet.Syncer
}

type env struct {
	p       *params.Params
	ledger  *ledger.Local
	prover  *snark.Groth16
	auditor *address.AuditKeyPair
	store   *wallet.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	p := params.Default()
	auditor, err := address.GenerateAudit(p)
	require.NoError(t, err)
	store, err := wallet.OpenMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	prover := snark.NewGroth16(nil, nil)
	require.NoError(t, prover.Register(snark.NoteCircuitName, snark.NewNoteCircuit, snark.KeyFiles{}))
	return &env{p: p, ledger: ledger.NewLocal(p, ""), prover: prover, auditor: auditor, store: store}
}

func (e *env) party(t *testing.T, name string) *party {
	t.Helper()
	keys, err := address.Generate(e.p)
	require.NoError(t, err)
	w, err := wallet.Open(e.store, name, e.p, keys, 1)
	require.NoError(t, err)
	return &party{keys: keys, wallet: w, syncer: wallet.NewSyncer(e.ledger, w, 10, nil, nil)}
}

func (pt *party) sync(t *testing.T) {
	t.Helper()
	_, err := pt.syncer.Sync(context.Background())
	require.NoError(t, err)
}

func (pt *party) balance(t *testing.T, p *params.Params) *big.Int {
	t.Helper()
	v, err := encryption.NewSymmetric(p, pt.keys.USK).Decrypt(pt.wallet.State().AmountCT)
	require.NoError(t, err)
	return v
}

func pocket(priv, in, out int64) Pocket {
	return Pocket{VPriv: big.NewInt(priv), VIn: big.NewInt(in), VOut: big.NewInt(out)}
}

func TestTransferRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := New(e.p, e.ledger, e.prover)
	alice := e.party(t, "alice")
	bob := e.party(t, "bob")

	// alice deposits 100 and pays bob 30 privately
	args, err := c.CreateTransArgs(ctx, alice.wallet, e.auditor.Pub, alice.keys, bob.keys.Pub, pocket(30, 100, 0), common.Address{}, nil)
	require.NoError(t, err)
	require.NotNil(t, args.Proof)
	require.NoError(t, e.prover.Verify(snark.NoteCircuitName, args.Statement, args.Proof))
	assert.Equal(t, 0, args.Call.Output.Addr.Cmp(alice.keys.Pub.Addr))
	_, err = e.ledger.Submit(args.Call)
	require.NoError(t, err)

	alice.sync(t)
	bob.sync(t)
	assert.Equal(t, 0, alice.balance(t, e.p).Cmp(big.NewInt(70)))

	notes, err := bob.wallet.GetNotes()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 0, notes[0].Note.Dv.Cmp(big.NewInt(30)))
	assert.Equal(t, uint64(0), notes[0].Address)

	// bob spends the note: 10 to alice, 5 withdrawn, 15 kept hidden
	idx := 0
	toEoA := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	args, err = c.CreateTransArgs(ctx, bob.wallet, e.auditor.Pub, bob.keys, alice.keys.Pub, pocket(10, 0, 5), toEoA, &idx)
	require.NoError(t, err)
	assert.Equal(t, toEoA, args.Call.ToEoA)
	_, err = e.ledger.Submit(args.Call)
	require.NoError(t, err)

	// the same nullifier cannot be spent twice
	_, err = e.ledger.Submit(args.Call)
	require.ErrorIs(t, err, ledger.ErrDoubleSpend)

	alice.sync(t)
	bob.sync(t)
	assert.Equal(t, 0, bob.balance(t, e.p).Cmp(big.NewInt(15)))

	active, err := bob.wallet.GetNotes()
	require.NoError(t, err)
	assert.Empty(t, active)
	spent, err := bob.wallet.SpentNotes()
	require.NoError(t, err)
	assert.Len(t, spent, 1)

	received, err := alice.wallet.GetNotes()
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, 0, received[0].Note.Dv.Cmp(big.NewInt(10)))
	assert.Equal(t, uint64(1), received[0].Address)
}

func TestAudit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	c := New(e.p, e.ledger, e.prover, WithLogger(logging.Wrap(zap.New(core))))
	alice := e.party(t, "alice")
	bob := e.party(t, "bob")

	args, err := c.CreateTransArgs(ctx, alice.wallet, e.auditor.Pub, alice.keys, bob.keys.Pub, pocket(42, 42, 0), common.Address{}, nil)
	require.NoError(t, err)
	_, err = e.ledger.Submit(args.Call)
	require.NoError(t, err)

	events, err := e.ledger.Events(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	records := c.Audit(e.auditor, events[0])
	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, rec.Valid)
	assert.Equal(t, 0, rec.Dv.Cmp(big.NewInt(42)))
	assert.Equal(t, uint64(1), rec.Block)
	assert.Equal(t, 1, logs.FilterMessage("transfer").Len())

	// a different auditor key cannot open the note
	other, err := address.GenerateAudit(e.p)
	require.NoError(t, err)
	records = c.Audit(other, events[0])
	for _, r := range records {
		assert.False(t, r.Valid)
	}
}

func TestCreateTransArgsErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := New(e.p, e.ledger, e.prover)
	alice := e.party(t, "alice")

	idx := 0
	_, err := c.CreateTransArgs(ctx, alice.wallet, e.auditor.Pub, alice.keys, alice.keys.Pub, pocket(1, 1, 0), common.Address{}, &idx)
	require.ErrorIs(t, err, ErrNoteIndex)

	bad := Pocket{VPriv: big.NewInt(-1), VIn: big.NewInt(0), VOut: big.NewInt(0)}
	_, err = c.CreateTransArgs(ctx, alice.wallet, e.auditor.Pub, alice.keys, alice.keys.Pub, bad, common.Address{}, nil)
	require.ErrorIs(t, err, ErrInvalidPocket)

	_, err = New(e.p, e.ledger, e.prover, WithCircuit("missing")).
		CreateTransArgs(ctx, alice.wallet, e.auditor.Pub, alice.keys, alice.keys.Pub, pocket(1, 1, 0), common.Address{}, nil)
	require.ErrorIs(t, err, snark.ErrUnknownCircuit)
}
