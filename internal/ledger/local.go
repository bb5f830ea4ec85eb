// local.go - Persistent, append-only local ledger.
//
// Local plays the role of the mixer contract for tests and the CLI demo. It
// records every commitment and nullifier, rejects double-spends and unknown
// roots, keeps one hidden balance per address and is persisted as a single
// JSON file. Each accepted transfer occupies its own block, numbered from 1.

package ledger

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"sync"

	"github.com/pkg/errors"

	"zklay/internal/encryption"
	"zklay/internal/field"
	"zklay/internal/params"
)

// Local is an in-process ledger. It is safe for concurrent use.
type Local struct {
	mu     sync.Mutex
	p      *params.Params
	path   string
	record localRecord
}

type localRecord struct {
	CmList      []string                   `json:"cm_list"`
	SnList      []string                   `json:"sn_list"`
	Roots       []string                   `json:"roots"`
	Transfers   []TransferEvent            `json:"transfers"`
	Ciphertexts map[string]*encryption.SCT `json:"ciphertexts"`
}

// NewLocal creates an empty ledger. path may be empty for a purely in-memory
// ledger.
func NewLocal(p *params.Params, path string) *Local {
	l := &Local{p: p, path: path}
	l.record = localRecord{
		CmList:      []string{},
		SnList:      []string{},
		Roots:       []string{field.Hex(new(big.Int))},
		Transfers:   []TransferEvent{},
		Ciphertexts: map[string]*encryption.SCT{},
	}
	return l
}

// LoadLocal opens the ledger stored at path, or an empty one when the file
// does not exist.
func LoadLocal(p *params.Params, path string) (*Local, error) {
	l := NewLocal(p, path)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", path)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&l.record); err != nil {
		return nil, errors.Wrapf(err, "decode ledger %s", path)
	}
	if len(l.record.Roots) == 0 {
		l.record.Roots = []string{field.Hex(new(big.Int))}
	}
	if l.record.Ciphertexts == nil {
		l.record.Ciphertexts = map[string]*encryption.SCT{}
	}
	return l, nil
}

// Save writes the ledger to its file, overwriting it.
func (l *Local) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

func (l *Local) saveLocked() error {
	if l.path == "" {
		return nil
	}
	f, err := os.Create(l.path)
	if err != nil {
		return errors.Wrapf(err, "create ledger %s", l.path)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(&l.record)
}

// Submit appends a transfer. It fails when the nullifier was already seen
// or the root was never a ledger root. The file is rewritten on success.
func (l *Local) Submit(call *TransCall) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sn := field.Hex(call.Nullifier)
	if contains(l.record.SnList, sn) {
		return 0, errors.Wrap(ErrDoubleSpend, sn)
	}
	if !contains(l.record.Roots, field.Hex(call.Root)) {
		return 0, errors.Wrap(ErrUnknownRoot, field.Hex(call.Root))
	}

	cm := field.Hex(call.Output.Cm)
	l.record.SnList = append(l.record.SnList, sn)
	l.record.CmList = append(l.record.CmList, cm)

	root := l.p.H(l.rootLocked(), call.Output.Cm)
	l.record.Roots = append(l.record.Roots, field.Hex(root))
	if call.SCTNew != nil {
		l.record.Ciphertexts[field.Hex(call.Sender.Addr)] = call.SCTNew
	}

	block := uint64(len(l.record.Transfers)) + 1
	l.record.Transfers = append(l.record.Transfers, TransferEvent{
		Block:     block,
		Root:      root,
		Nullifier: new(big.Int).Set(call.Nullifier),
		Outputs:   []TransOutput{call.Output},
	})
	if err := l.saveLocked(); err != nil {
		return 0, err
	}
	return block, nil
}

// HasNullifier reports whether sn has been spent.
func (l *Local) HasNullifier(sn *big.Int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return contains(l.record.SnList, field.Hex(sn))
}

// HasCommitment reports whether cm has been published.
func (l *Local) HasCommitment(cm *big.Int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return contains(l.record.CmList, field.Hex(cm))
}

// NumCommitments is the size of the commitment set, which is also the next
// commitment-tree address.
func (l *Local) NumCommitments() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.record.CmList)
}

func (l *Local) Head(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.record.Transfers)), nil
}

func (l *Local) Events(_ context.Context, from, to uint64) ([]TransferEvent, error) {
	if from > to {
		return nil, errors.Wrapf(ErrInvalidRange, "[%d, %d]", from, to)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []TransferEvent
	for _, ev := range l.record.Transfers {
		if ev.Block >= from && ev.Block <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *Local) Ciphertext(_ context.Context, addr *big.Int) (*encryption.SCT, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ct, ok := l.record.Ciphertexts[field.Hex(addr)]; ok {
		return ct, nil
	}
	return encryption.EmptySCT(), nil
}

func (l *Local) Root(context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rootLocked(), nil
}

func (l *Local) rootLocked() *big.Int {
	r, _ := field.ParseHex(l.record.Roots[len(l.record.Roots)-1])
	return r
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var (
	_ Source = (*Local)(nil)
	_ State  = (*Local)(nil)
)
