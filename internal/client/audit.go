package client

import (
	"math/big"

	"go.uber.org/zap"

	"zklay/internal/address"
	"zklay/internal/encryption"
	"zklay/internal/field"
	"zklay/internal/ledger"
	"zklay/internal/note"
)

// AuditRecord is the auditor's view of one transfer output.
type AuditRecord struct {
	Block     uint64   `json:"block"`
	Nullifier string   `json:"nullifier"`
	Cm        string   `json:"cm"`
	Sender    string   `json:"sender"`
	Receiver  string   `json:"receiver"`
	Du        *big.Int `json:"du"`
	Dv        *big.Int `json:"dv"`
	// Valid is false when the decrypted note does not open Cm.
	Valid bool `json:"valid"`
}

// Audit decrypts every output of ev with the auditor key. Outputs that fail
// to decrypt are logged and skipped.
func (c *Client) Audit(auditor *address.AuditKeyPair, ev ledger.TransferEvent) []AuditRecord {
	penc := encryption.NewPublicKey(c.p, auditor.ASK)
	var out []AuditRecord
	for i, o := range ev.Outputs {
		if o.PCT == nil || o.Cm == nil {
			c.log.Warn("audit: output without ciphertext", zap.Uint64("block", ev.Block), zap.Int("output", i))
			continue
		}
		du, dv, receiver, err := penc.Decrypt(o.PCT, true)
		if err != nil {
			c.log.Warn("audit: decryption failed", zap.Uint64("block", ev.Block), zap.Int("output", i), zap.Error(err))
			continue
		}
		cm := note.Commitment(c.p, &note.Note{Du: du, Dv: dv, Addr: receiver})
		rec := AuditRecord{
			Block:    ev.Block,
			Cm:       field.Hex(o.Cm),
			Receiver: field.Hex(receiver),
			Du:       du,
			Dv:       dv,
			Valid:    cm.Cmp(o.Cm) == 0,
		}
		if ev.Nullifier != nil {
			rec.Nullifier = field.Hex(ev.Nullifier)
		}
		if o.Addr != nil {
			rec.Sender = field.Hex(o.Addr)
		}
		c.log.Audit("transfer",
			zap.Uint64("block", rec.Block),
			zap.String("nullifier", rec.Nullifier),
			zap.String("commit", note.ShortCommitment(o.Cm)),
			zap.String("sender", rec.Sender),
			zap.String("receiver", rec.Receiver),
			zap.Stringer("value", dv),
			zap.Bool("valid", rec.Valid))
		out = append(out, rec)
	}
	return out
}
