// client.go - Transfer construction and auditing.
//
// CreateTransArgs turns a wallet note (or a fresh zero-value note) and a
// Pocket into the public call data of a transfer together with the proof
// over it. Audit is the auditor's view of a published transfer.

package client

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zklay/internal/address"
	"zklay/internal/encryption"
	"zklay/internal/field"
	"zklay/internal/ledger"
	"zklay/internal/logging"
	"zklay/internal/note"
	"zklay/internal/params"
	"zklay/internal/snark"
	"zklay/internal/wallet"
)

var (
	ErrNoteIndex     = errors.New("note index out of range")
	ErrInvalidPocket = errors.New("invalid pocket")
)

// Pocket is the value movement of one transfer, in zklay units.
//
//	VPriv  paid privately to the receiver as a new note
//	VIn    deposited from the sender's public account
//	VOut   withdrawn to ToEoA
type Pocket struct {
	VPriv *big.Int
	VIn   *big.Int
	VOut  *big.Int
}

func (p Pocket) validate(prime *big.Int) error {
	for name, v := range map[string]*big.Int{"v_priv": p.VPriv, "v_in": p.VIn, "v_out": p.VOut} {
		if v == nil || v.Sign() < 0 || v.Cmp(prime) >= 0 {
			return errors.Wrapf(ErrInvalidPocket, "%s out of range", name)
		}
	}
	return nil
}

// TransParameters is everything needed to submit a transfer.
type TransParameters struct {
	Proof     *snark.Proof
	Call      *ledger.TransCall
	Statement snark.Statement
}

// Client builds transfers against a ledger state.
type Client struct {
	p       *params.Params
	state   ledger.State
	prover  snark.Prover
	circuit string
	log     *logging.Logger
}

type Option func(*Client)

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCircuit selects the circuit proofs are generated for.
func WithCircuit(name string) Option {
	return func(c *Client) { c.circuit = name }
}

func New(p *params.Params, state ledger.State, prover snark.Prover, opts ...Option) *Client {
	c := &Client{
		p:       p,
		state:   state,
		prover:  prover,
		circuit: snark.NoteCircuitName,
		log:     logging.Wrap(nil),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateTransArgs builds a transfer from sender to receiver. noteIdx selects
// the wallet note to spend, by position in GetNotes; nil spends a fresh
// zero-value note so the transfer only moves hidden balance.
func (c *Client) CreateTransArgs(
	ctx context.Context,
	w *wallet.Wallet,
	auditor address.AuditPub,
	sender *address.KeyPair,
	receiver address.Pub,
	pocket Pocket,
	toEoA common.Address,
	noteIdx *int,
) (*TransParameters, error) {
	prime := c.p.Prime()
	if err := pocket.validate(prime); err != nil {
		return nil, err
	}
	addr := sender.Pub.Addr
	sk := sender.USK
	senc := encryption.NewSymmetric(c.p, sk)
	penc := encryption.NewPublicKey(c.p, sk)

	var (
		duOld, dv, cmOld *big.Int
		idx              uint64
	)
	if noteIdx == nil {
		var err error
		if duOld, err = c.p.Random(); err != nil {
			return nil, err
		}
		dv = new(big.Int)
		cmOld = note.Commitment(c.p, &note.Note{Du: duOld, Dv: dv, Addr: addr})
		idx = w.NextAddr()
	} else {
		notes, err := w.GetNotes()
		if err != nil {
			return nil, errors.Wrap(err, "list notes")
		}
		if *noteIdx < 0 || *noteIdx >= len(notes) {
			return nil, errors.Wrapf(ErrNoteIndex, "%d of %d", *noteIdx, len(notes))
		}
		d := notes[*noteIdx]
		duOld, dv, cmOld, idx = d.Note.Du, d.Note.Dv, d.Commitment, d.Address
	}
	sn := note.Nullifier(c.p, cmOld, sk)

	sctOld, err := c.state.Ciphertext(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(err, "read hidden balance")
	}
	v, err := senc.Decrypt(sctOld)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt hidden balance")
	}
	root, err := c.state.Root(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read root")
	}

	duNew, err := c.p.Random()
	if err != nil {
		return nil, err
	}
	pct, r, k, err := penc.Encrypt(auditor, receiver, duNew, pocket.VPriv, receiver.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt note")
	}

	// v' = v + dv - v_priv + v_in - v_out
	credit := new(big.Int).Add(v, dv)
	credit.Add(credit, pocket.VIn)
	debit := new(big.Int).Add(pocket.VPriv, pocket.VOut)
	if credit.Cmp(debit) < 0 {
		c.log.Warn("transfer exceeds available balance",
			zap.Stringer("available", credit),
			zap.Stringer("spent", debit))
	}
	vNew := new(big.Int).Sub(credit, debit)
	vNew.Mod(vNew, prime)
	sctNew, err := senc.Encrypt(vNew)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt hidden balance")
	}

	cmNew := note.Commitment(c.p, &note.Note{Du: duNew, Dv: pocket.VPriv, Addr: receiver.Addr})
	call := &ledger.TransCall{
		Root:      root,
		Nullifier: sn,
		Sender:    sender.Pub,
		SCTNew:    sctNew,
		VIn:       new(big.Int).Set(pocket.VIn),
		VOut:      new(big.Int).Set(pocket.VOut),
		Output:    ledger.TransOutput{Cm: cmNew, Addr: addr, PCT: pct},
		ToEoA:     toEoA,
	}

	stmt := snark.NewStatement()
	stmt.Set("G_r", pct.C0)
	stmt.Set("K_u", pct.C1)
	stmt.Set("K_a", pct.C2)
	stmt.Set("addr", addr)
	stmt.Set("k_b", sender.Pub.PkOwn)
	stmt.Set("k_u", sender.Pub.PkEnc)
	stmt.Set("apk", auditor.APK)
	stmt.Set("rt", root)
	stmt.Set("sn", sn)
	stmt.Set("cm_", cmNew)
	stmt.Set("pv", pocket.VIn)
	stmt.Set("pv_", pocket.VOut)
	stmt.SetArray("cin", sctOld.List()...)
	stmt.SetArray("cout", sctNew.List()...)
	stmt.SetArray("CT", pct.C3[:]...)

	wit := snark.NewWitness()
	wit.Set("addr_r", receiver.Addr)
	wit.Set("k_b_", receiver.PkOwn)
	wit.Set("k_u_", receiver.PkEnc)
	wit.Set("sk", sk)
	wit.Set("cm", cmOld)
	wit.Set("du", duOld)
	wit.Set("dv", dv)
	wit.Set("du_", duNew)
	wit.Set("dv_", pocket.VPriv)
	wit.Set("r", r)
	wit.Set("k", k)
	wit.Set("direction", new(big.Int).SetUint64(idx))

	if ce := c.log.Check(zap.DebugLevel, "transfer inputs"); ce != nil {
		raw, _ := json.Marshal(stmt.Merge(wit.Inputs))
		ce.Write(zap.ByteString("inputs", raw))
	}

	proof, err := c.prover.Prove(ctx, c.circuit, stmt, wit)
	if err != nil {
		return nil, errors.Wrap(err, "generate proof")
	}
	if err := c.prover.Verify(c.circuit, stmt, proof); err != nil {
		return nil, errors.Wrap(err, "self-check proof")
	}
	c.log.Info("transfer prepared",
		zap.String("nullifier", field.Hex(sn)),
		zap.String("commit", note.ShortCommitment(cmNew)),
		zap.Uint64("spent_address", idx))
	return &TransParameters{Proof: proof, Call: call, Statement: stmt}, nil
}
