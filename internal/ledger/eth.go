// eth.go - Ledger access over an Ethereum-compatible JSON-RPC endpoint.

package ledger

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zklay/internal/encryption"
)

// ContractABI is the subset of the mixer contract interface the client uses.
const ContractABI = `[
  {"type":"event","name":"LogTrans","anonymous":false,"inputs":[
    {"name":"root","type":"uint256","indexed":false},
    {"name":"nullifier","type":"uint256","indexed":false},
    {"name":"com","type":"uint256","indexed":false},
    {"name":"addr","type":"uint256","indexed":false},
    {"name":"c_0","type":"uint256","indexed":false},
    {"name":"c_1","type":"uint256","indexed":false},
    {"name":"c_2","type":"uint256","indexed":false},
    {"name":"c_3_0","type":"uint256","indexed":false},
    {"name":"c_3_1","type":"uint256","indexed":false},
    {"name":"c_3_2","type":"uint256","indexed":false}]},
  {"type":"function","name":"getCiphertext","stateMutability":"view",
    "inputs":[{"name":"addr","type":"uint256"}],
    "outputs":[{"name":"ct","type":"uint256"},{"name":"r","type":"uint256"}]},
  {"type":"function","name":"getRootTop","stateMutability":"view",
    "inputs":[],
    "outputs":[{"name":"root","type":"uint256"}]}
]`

// LogTransEvent is the event name of a transfer.
const LogTransEvent = "LogTrans"

// DefaultBatchSize bounds the block span of one log query.
const DefaultBatchSize = 1000

// Backend is the RPC surface Eth needs. *ethclient.Client satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Eth reads transfers and contract state from a deployed mixer.
type Eth struct {
	backend   Backend
	contract  common.Address
	abi       abi.ABI
	batchSize uint64
	limiter   *RateLimiter
	log       *zap.Logger
}

// EthOption configures an Eth source.
type EthOption func(*Eth)

// WithBatchSize bounds the number of blocks covered by a single log query.
func WithBatchSize(n uint64) EthOption {
	return func(e *Eth) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRateLimit throttles RPC requests through rl.
func WithRateLimit(rl *RateLimiter) EthOption {
	return func(e *Eth) { e.limiter = rl }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) EthOption {
	return func(e *Eth) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEth binds a backend to the contract at addr.
func NewEth(backend Backend, contract common.Address, opts ...EthOption) (*Eth, error) {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse contract abi")
	}
	e := &Eth{
		backend:   backend,
		contract:  contract,
		abi:       parsed,
		batchSize: DefaultBatchSize,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// DialEth connects to rpcURL and binds the contract.
func DialEth(ctx context.Context, rpcURL string, contract common.Address, opts ...EthOption) (*Eth, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", rpcURL)
	}
	return NewEth(client, contract, opts...)
}

// wait takes one request token.
func (e *Eth) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Eth) Head(ctx context.Context) (uint64, error) {
	if err := e.wait(ctx); err != nil {
		return 0, err
	}
	n, err := e.backend.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "block number")
	}
	return n, nil
}

// Events queries LogTrans logs in windows of at most batchSize blocks.
// A log that fails to decode fails the whole call.
func (e *Eth) Events(ctx context.Context, from, to uint64) ([]TransferEvent, error) {
	if from > to {
		return nil, errors.Wrapf(ErrInvalidRange, "[%d, %d]", from, to)
	}
	topic := e.abi.Events[LogTransEvent].ID
	var out []TransferEvent
	for start := from; start <= to; start += e.batchSize {
		end := start + e.batchSize - 1
		if end > to || end < start {
			end = to
		}
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		logs, err := e.backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{e.contract},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "filter logs [%d, %d]", start, end)
		}
		for _, lg := range logs {
			ev, err := e.DecodeLog(lg)
			if err != nil {
				// every log occupies a tree address, so dropping one would
				// shift all later notes
				return nil, errors.Wrapf(err, "decode log in block %d tx %s", lg.BlockNumber, lg.TxHash)
			}
			out = append(out, *ev)
		}
		e.log.Debug("fetched logs", zap.Uint64("from", start), zap.Uint64("to", end), zap.Int("logs", len(logs)))
		if end == to {
			break
		}
	}
	return out, nil
}

type logTrans struct {
	Root      *big.Int
	Nullifier *big.Int
	Com       *big.Int
	Addr      *big.Int
	C0        *big.Int
	C1        *big.Int
	C2        *big.Int
	C30       *big.Int
	C31       *big.Int
	C32       *big.Int
}

// DecodeLog turns a LogTrans log into a transfer event.
func (e *Eth) DecodeLog(lg types.Log) (*TransferEvent, error) {
	var raw logTrans
	if err := e.abi.UnpackIntoInterface(&raw, LogTransEvent, lg.Data); err != nil {
		return nil, errors.Wrap(err, "unpack LogTrans")
	}
	return &TransferEvent{
		Block:     lg.BlockNumber,
		Root:      raw.Root,
		Nullifier: raw.Nullifier,
		Outputs: []TransOutput{{
			Cm:   raw.Com,
			Addr: raw.Addr,
			PCT: &encryption.PCT{
				C0: raw.C0,
				C1: raw.C1,
				C2: raw.C2,
				C3: [encryption.MessageLen]*big.Int{raw.C30, raw.C31, raw.C32},
			},
		}},
	}, nil
}

func (e *Eth) Ciphertext(ctx context.Context, addr *big.Int) (*encryption.SCT, error) {
	out, err := e.call(ctx, "getCiphertext", addr)
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, errors.Errorf("getCiphertext returned %d values", len(out))
	}
	ct, okCT := out[0].(*big.Int)
	r, okR := out[1].(*big.Int)
	if !okCT || !okR {
		return nil, errors.New("getCiphertext: unexpected types")
	}
	return &encryption.SCT{R: r, CT: ct}, nil
}

func (e *Eth) Root(ctx context.Context) (*big.Int, error) {
	out, err := e.call(ctx, "getRootTop")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.Errorf("getRootTop returned %d values", len(out))
	}
	root, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New("getRootTop: unexpected type")
	}
	return root, nil
}

func (e *Eth) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	res, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.contract, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	out, err := e.abi.Unpack(method, res)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}

var (
	_ Source  = (*Eth)(nil)
	_ State   = (*Eth)(nil)
	_ Backend = (*ethclient.Client)(nil)
)
