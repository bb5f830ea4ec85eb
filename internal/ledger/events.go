// events.go - Transfer events and the ledger access contract.
//
// A ledger is an ordered, finite and replayable sequence of transfer events
// keyed by block number. The wallet consumes events through Source; the
// transfer client reads the sender's hidden balance and the current root
// through State.

package ledger

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"zklay/internal/address"
	"zklay/internal/encryption"
	"zklay/internal/field"
)

var (
	ErrDoubleSpend  = errors.New("double-spend: nullifier already in ledger")
	ErrUnknownRoot  = errors.New("unknown commitment root")
	ErrInvalidRange = errors.New("invalid block range")
)

// TransOutput is one new note published by a transfer.
type TransOutput struct {
	Cm   *big.Int
	Addr *big.Int
	PCT  *encryption.PCT
}

// TransferEvent is a transfer as observed on the ledger.
type TransferEvent struct {
	Block     uint64
	Root      *big.Int
	Nullifier *big.Int
	Outputs   []TransOutput
}

// TransCall is the public call data of a transfer.
type TransCall struct {
	Root      *big.Int        `json:"rt"`
	Nullifier *big.Int        `json:"sn"`
	Sender    address.Pub     `json:"pk"`
	SCTNew    *encryption.SCT `json:"s_ct_new"`
	VIn       *big.Int        `json:"v_in"`
	VOut      *big.Int        `json:"v_out"`
	Output    TransOutput     `json:"output"`
	ToEoA     common.Address  `json:"to_eoa"`
}

// Source yields transfer events.
type Source interface {
	// Head returns the latest block number.
	Head(ctx context.Context) (uint64, error)
	// Events returns the transfers in blocks [from, to], in block order.
	Events(ctx context.Context, from, to uint64) ([]TransferEvent, error)
}

// State exposes the contract state a sender needs to build a transfer.
type State interface {
	// Ciphertext returns the hidden balance of addr. Unknown addresses
	// return the empty ciphertext.
	Ciphertext(ctx context.Context, addr *big.Int) (*encryption.SCT, error)
	// Root returns the current commitment root.
	Root(ctx context.Context) (*big.Int, error)
}

type outputJSON struct {
	Cm   string          `json:"cm"`
	Addr string          `json:"addr"`
	PCT  *encryption.PCT `json:"p_ct"`
}

func (o TransOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{Cm: field.Hex(o.Cm), Addr: field.Hex(o.Addr), PCT: o.PCT})
}

func (o *TransOutput) UnmarshalJSON(data []byte) error {
	var raw outputJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cm, err := field.ParseHex(raw.Cm)
	if err != nil {
		return errors.Wrap(err, "cm")
	}
	addr, err := field.ParseHex(raw.Addr)
	if err != nil {
		return errors.Wrap(err, "addr")
	}
	o.Cm, o.Addr, o.PCT = cm, addr, raw.PCT
	return nil
}

type eventJSON struct {
	Block     uint64        `json:"block"`
	Root      string        `json:"root"`
	Nullifier string        `json:"nullifier"`
	Outputs   []TransOutput `json:"outputs"`
}

func (e TransferEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Block:     e.Block,
		Root:      field.Hex(e.Root),
		Nullifier: field.Hex(e.Nullifier),
		Outputs:   e.Outputs,
	})
}

func (e *TransferEvent) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	root, err := field.ParseHex(raw.Root)
	if err != nil {
		return errors.Wrap(err, "root")
	}
	sn, err := field.ParseHex(raw.Nullifier)
	if err != nil {
		return errors.Wrap(err, "nullifier")
	}
	e.Block, e.Root, e.Nullifier, e.Outputs = raw.Block, root, sn, raw.Outputs
	return nil
}
