// wallet.go - Per-address note wallet.
//
// A Wallet decrypts transfer outputs addressed to its owner, stores the
// notes it can validate and tracks the nullifier of every owned note so it
// can recognise when the note is spent. Notes are stored as soon as they are
// discovered; the state record (cursor, note count and nullifier map) is
// only persisted by UpdateAndSaveState, which makes an interrupted sync safe
// to replay.

package wallet

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zklay/internal/address"
	"zklay/internal/encryption"
	"zklay/internal/field"
	"zklay/internal/ledger"
	"zklay/internal/metrics"
	"zklay/internal/note"
	"zklay/internal/params"
)

var (
	ErrInvalidUsername    = errors.New("username must be non-empty and contain no '_' or '/'")
	ErrCommitmentMismatch = errors.New("decrypted note does not match its commitment")
	ErrZeroValueNote      = errors.New("zero-value note")
)

// addrKeyLen is the longest FindNote key treated as a tree address.
const addrKeyLen = 4

const cacheSize = 256

// State is the persisted wallet state.
type State struct {
	NextBlock    uint64            `json:"next_block"`
	NumNotes     uint64            `json:"num_notes"`
	NullifierMap map[string]string `json:"nullifier_map"`
	AmountCT     *encryption.SCT   `json:"amount_ct"`
}

// Summary is the index record of a stored note.
type Summary struct {
	Address         uint64   `json:"address"`
	ShortCommitment string   `json:"short_commitment"`
	Value           *big.Int `json:"value"`
}

// Wallet tracks the notes of one address. It is not safe for concurrent use.
type Wallet struct {
	username string
	p        *params.Params
	keys     *address.KeyPair
	penc     *encryption.PublicKey
	store    *Store
	state    State
	nextAddr uint64
	cache    *lru.Cache[string, *note.Description]
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Wallet.
type Option func(*Wallet)

func WithLogger(l *zap.Logger) Option {
	return func(w *Wallet) {
		if l != nil {
			w.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wallet) { w.metrics = m }
}

// Open loads the wallet of username from store. A wallet without saved state
// starts scanning at genesis.
func Open(store *Store, username string, p *params.Params, keys *address.KeyPair, genesis uint64, opts ...Option) (*Wallet, error) {
	if username == "" || strings.ContainsAny(username, "_/") {
		return nil, errors.Wrap(ErrInvalidUsername, username)
	}
	cache, err := lru.New[string, *note.Description](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "note cache")
	}
	w := &Wallet{
		username: username,
		p:        p,
		keys:     keys,
		penc:     encryption.NewPublicKey(p, keys.USK),
		store:    store,
		cache:    cache,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.With(zap.String("wallet", username))

	raw, err := store.get(stateKey(username))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		w.state = State{NextBlock: genesis, NullifierMap: map[string]string{}, AmountCT: encryption.EmptySCT()}
	} else {
		if err := json.Unmarshal(raw, &w.state); err != nil {
			return nil, errors.Wrapf(err, "decode state of %s", username)
		}
		if w.state.NullifierMap == nil {
			w.state.NullifierMap = map[string]string{}
		}
		if w.state.AmountCT == nil {
			w.state.AmountCT = encryption.EmptySCT()
		}
	}
	// the note count is the tree address of the next commitment
	w.nextAddr = w.state.NumNotes
	return w, nil
}

func (w *Wallet) Username() string { return w.username }

// Keys returns the owner's key pair.
func (w *Wallet) Keys() *address.KeyPair { return w.keys }

// NextBlock is the first block not yet synced.
func (w *Wallet) NextBlock() uint64 { return w.state.NextBlock }

// NextAddr is the tree address the next output event will occupy.
func (w *Wallet) NextAddr() uint64 { return w.nextAddr }

// State returns a copy of the in-memory state.
func (w *Wallet) State() State {
	s := w.state
	s.NullifierMap = make(map[string]string, len(w.state.NullifierMap))
	for k, v := range w.state.NullifierMap {
		s.NullifierMap[k] = v
	}
	return s
}

// SetAmountCT records the latest hidden balance ciphertext of the owner.
func (w *Wallet) SetAmountCT(ct *encryption.SCT) {
	if ct != nil {
		w.state.AmountCT = ct
	}
}

// checkpoint is the in-memory sync position of a wallet.
type checkpoint struct {
	nextAddr   uint64
	numNotes   uint64
	nullifiers map[string]string
	amountCT   *encryption.SCT
}

func (w *Wallet) checkpoint() checkpoint {
	nullifiers := make(map[string]string, len(w.state.NullifierMap))
	for k, v := range w.state.NullifierMap {
		nullifiers[k] = v
	}
	return checkpoint{
		nextAddr:   w.nextAddr,
		numNotes:   w.state.NumNotes,
		nullifiers: nullifiers,
		amountCT:   w.state.AmountCT,
	}
}

// rollback restores c so that a failed cycle can be replayed from the saved
// cursor at the same tree addresses.
func (w *Wallet) rollback(c checkpoint) {
	w.nextAddr = c.nextAddr
	w.state.NumNotes = c.numNotes
	w.state.NullifierMap = c.nullifiers
	w.state.AmountCT = c.amountCT
	w.cache.Purge()
}

// ReceiveNote tries to open an output event at tree address addr. It returns
// nil for outputs that are not addressed to this wallet or fail validation.
func (w *Wallet) ReceiveNote(addr uint64, out ledger.TransOutput) *note.Description {
	if out.PCT == nil || out.Cm == nil {
		w.metrics.NoteRejected(metrics.ReasonMalformed)
		w.log.Warn("output without ciphertext", zap.Uint64("address", addr))
		return nil
	}
	du, dv, owner, err := w.penc.Decrypt(out.PCT, false)
	if err != nil {
		w.log.Debug("output not decryptable", zap.Uint64("address", addr), zap.Error(err))
		return nil
	}
	if owner.Cmp(w.keys.Pub.Addr) != 0 {
		return nil
	}

	plain := note.Note{Du: du, Dv: dv, Addr: owner}
	decoded, err := note.FromBytes(plain.Bytes())
	if err != nil {
		w.metrics.NoteRejected(metrics.ReasonMalformed)
		w.log.Warn("discarding note", zap.Uint64("address", addr), zap.Error(err))
		return nil
	}
	n := *decoded
	cm := note.Commitment(w.p, &n)
	if cm.Cmp(out.Cm) != 0 {
		w.metrics.NoteRejected(metrics.ReasonCommitmentMismatch)
		w.log.Warn("discarding note",
			zap.Error(ErrCommitmentMismatch),
			zap.String("commit", note.ShortCommitment(out.Cm)),
			zap.String("computed", note.ShortCommitment(cm)))
		return nil
	}
	if dv.Sign() == 0 {
		w.metrics.NoteRejected(metrics.ReasonZeroValue)
		w.log.Warn("discarding note",
			zap.Error(ErrZeroValueNote),
			zap.String("commit", note.ShortCommitment(cm)))
		return nil
	}

	desc := &note.Description{Note: n, Address: addr, Commitment: cm}
	if err := w.writeNote(Active, desc); err != nil {
		w.log.Error("storing note", zap.String("commit", desc.Short()), zap.Error(err))
		return nil
	}

	sn := note.Nullifier(w.p, cm, w.keys.USK)
	w.state.NullifierMap[field.Hex(sn)] = desc.Short()
	w.metrics.NoteReceived()
	w.log.Info("received note",
		zap.Uint64("address", addr),
		zap.String("commit", desc.Short()),
		zap.Stringer("value", dv))
	return desc
}

// ReceiveNotes applies ReceiveNote to each output in order. Every output
// occupies one tree address whether or not it belongs to this wallet.
func (w *Wallet) ReceiveNotes(outs []ledger.TransOutput) []*note.Description {
	var found []*note.Description
	for _, out := range outs {
		if d := w.ReceiveNote(w.nextAddr, out); d != nil {
			found = append(found, d)
		}
		w.nextAddr++
	}
	w.state.NumNotes += uint64(len(outs))
	return found
}

// MarkNullifierUsed moves the note spent by sn into the spent partition. It
// returns the note's short commitment, or false if sn is not ours.
func (w *Wallet) MarkNullifierUsed(sn *big.Int) (string, bool) {
	key := field.Hex(sn)
	short, ok := w.state.NullifierMap[key]
	if !ok {
		return "", false
	}
	if err := w.moveToSpent(short); err != nil {
		w.log.Error("marking note spent", zap.String("commit", short), zap.Error(err))
		return "", false
	}
	delete(w.state.NullifierMap, key)
	w.cache.Purge()
	w.metrics.NullifierMarked()
	w.log.Info("note spent", zap.String("commit", short))
	return short, true
}

// UpdateAndSaveState advances the sync cursor and persists the state.
func (w *Wallet) UpdateAndSaveState(nextBlock uint64) error {
	if nextBlock > w.state.NextBlock {
		w.state.NextBlock = nextBlock
	}
	raw, err := json.Marshal(&w.state)
	if err != nil {
		return errors.Wrap(err, "encode state")
	}
	return w.store.set(stateKey(w.username), raw)
}

// GetNotes returns the active notes ordered by tree address.
func (w *Wallet) GetNotes() ([]*note.Description, error) {
	return w.notes(Active)
}

// SpentNotes returns the spent notes ordered by tree address.
func (w *Wallet) SpentNotes() ([]*note.Description, error) {
	return w.notes(Spent)
}

// NoteSummaries lists active notes from their index records only.
func (w *Wallet) NoteSummaries() ([]Summary, error) {
	return w.summaries(Active)
}

// SpentNoteSummaries lists spent notes from their index records only.
func (w *Wallet) SpentNoteSummaries() ([]Summary, error) {
	return w.summaries(Spent)
}

// FindNote resolves id to exactly one active note. Keys of at most four
// characters are tree addresses; longer keys are short commitments.
func (w *Wallet) FindNote(id string) (*note.Description, bool) {
	if d, ok := w.cache.Get(id); ok {
		return d, true
	}
	sums, err := w.NoteSummaries()
	if err != nil {
		w.log.Error("listing notes", zap.Error(err))
		return nil, false
	}

	var matches []Summary
	if len(id) <= addrKeyLen {
		addr, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, false
		}
		for _, s := range sums {
			if s.Address == addr {
				matches = append(matches, s)
			}
		}
	} else {
		for _, s := range sums {
			if s.ShortCommitment == id {
				matches = append(matches, s)
			}
		}
	}
	if len(matches) != 1 {
		return nil, false
	}

	d, err := w.readNote(Active, matches[0].Address, matches[0].ShortCommitment)
	if err != nil || d == nil {
		return nil, false
	}
	w.cache.Add(id, d)
	return d, true
}

// FirstNote returns the active note with the lowest tree address.
func (w *Wallet) FirstNote() (*note.Description, bool) {
	notes, err := w.GetNotes()
	if err != nil || len(notes) == 0 {
		return nil, false
	}
	return notes[0], true
}

func (w *Wallet) writeNote(part Partition, d *note.Description) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	idx, err := json.Marshal(Summary{Address: d.Address, ShortCommitment: d.Short(), Value: d.Note.Dv})
	if err != nil {
		return err
	}
	b := w.store.newBatch()
	if err := b.set(noteKey(w.username, part, d.Address, d.Short()), raw); err != nil {
		return err
	}
	if err := b.set(indexKey(w.username, part, d.Address, d.Short()), idx); err != nil {
		return err
	}
	// a new note can make a cached lookup ambiguous
	w.cache.Purge()
	return b.commit()
}

func (w *Wallet) readNote(part Partition, addr uint64, short string) (*note.Description, error) {
	raw, err := w.store.get(noteKey(w.username, part, addr, short))
	if err != nil || raw == nil {
		return nil, err
	}
	var d note.Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (w *Wallet) moveToSpent(short string) error {
	sums, err := w.summaries(Active)
	if err != nil {
		return err
	}
	for _, s := range sums {
		if s.ShortCommitment != short {
			continue
		}
		d, err := w.readNote(Active, s.Address, short)
		if err != nil {
			return err
		}
		if d == nil {
			return errors.Errorf("note %s missing for index record", short)
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		idx, err := json.Marshal(s)
		if err != nil {
			return err
		}
		b := w.store.newBatch()
		for _, op := range []error{
			b.delete(noteKey(w.username, Active, s.Address, short)),
			b.delete(indexKey(w.username, Active, s.Address, short)),
			b.set(noteKey(w.username, Spent, s.Address, short), raw),
			b.set(indexKey(w.username, Spent, s.Address, short), idx),
		} {
			if op != nil {
				return op
			}
		}
		return b.commit()
	}
	// already moved by an interrupted earlier cycle
	return nil
}

func (w *Wallet) notes(part Partition) ([]*note.Description, error) {
	var out []*note.Description
	err := w.store.scan(notePrefix(w.username, part), func(_, value []byte) error {
		var d note.Description
		if err := json.Unmarshal(value, &d); err != nil {
			return errors.Wrap(err, "decode note")
		}
		out = append(out, &d)
		return nil
	})
	return out, err
}

func (w *Wallet) summaries(part Partition) ([]Summary, error) {
	var out []Summary
	err := w.store.scan(indexPrefix(w.username, part), func(key, value []byte) error {
		var s Summary
		if err := json.Unmarshal(value, &s); err != nil {
			w.log.Warn("skipping bad index record", zap.ByteString("key", key), zap.Error(err))
			return nil
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
