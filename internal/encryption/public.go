// public.go - Dual-recipient public-key encryption of a note.
//
// The sender draws r and a message key k, then publishes
//
//	C0 = x(r·G)
//	C1 = k + H(x(r·pk_enc))   opened by the receiver with usk
//	C2 = k + H(x(r·apk))      opened by the auditor with ask
//	C3 = m + mask chain of k
//
// where m = (du, dv, addr). The mask chain is mask_0 = H(k) and
// mask_i = H(mask_{i-1}).

package encryption

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"zklay/internal/address"
	"zklay/internal/field"
	"zklay/internal/params"
)

// MessageLen is the number of field elements carried in C3.
const MessageLen = 3

// PCT is a public-key ciphertext.
type PCT struct {
	C0 *big.Int
	C1 *big.Int
	C2 *big.Int
	C3 [MessageLen]*big.Int
}

// List flattens ct in statement order: c0, c1, c2, c3[0..2].
func (ct *PCT) List() []*big.Int {
	out := []*big.Int{ct.C0, ct.C1, ct.C2}
	return append(out, ct.C3[:]...)
}

// PCTFromList is the inverse of List.
func PCTFromList(l []*big.Int) (*PCT, error) {
	if len(l) != 3+MessageLen {
		return nil, errors.Wrapf(ErrDecryption, "ciphertext has %d elements", len(l))
	}
	ct := &PCT{C0: l[0], C1: l[1], C2: l[2]}
	copy(ct.C3[:], l[3:])
	return ct, nil
}

type pctJSON struct {
	C0 string   `json:"c_0"`
	C1 string   `json:"c_1"`
	C2 string   `json:"c_2"`
	C3 []string `json:"c_3"`
}

func (ct PCT) MarshalJSON() ([]byte, error) {
	if err := ct.complete(); err != nil {
		return nil, err
	}
	raw := pctJSON{C0: field.Hex(ct.C0), C1: field.Hex(ct.C1), C2: field.Hex(ct.C2)}
	for _, c := range ct.C3 {
		raw.C3 = append(raw.C3, field.Hex(c))
	}
	return json.Marshal(raw)
}

func (ct *PCT) UnmarshalJSON(data []byte) error {
	var raw pctJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.C3) != MessageLen {
		return errors.Wrapf(ErrDecryption, "c_3 has %d elements", len(raw.C3))
	}
	all := append([]string{raw.C0, raw.C1, raw.C2}, raw.C3...)
	vals := make([]*big.Int, len(all))
	for i, s := range all {
		v, err := field.ParseHex(s)
		if err != nil {
			return errors.Wrapf(ErrDecryption, "element %d: %v", i, err)
		}
		vals[i] = v
	}
	parsed, _ := PCTFromList(vals)
	*ct = *parsed
	return nil
}

func (ct *PCT) complete() error {
	if ct == nil || ct.C0 == nil || ct.C1 == nil || ct.C2 == nil {
		return errors.Wrap(ErrDecryption, "missing component")
	}
	for _, c := range ct.C3 {
		if c == nil {
			return errors.Wrap(ErrDecryption, "missing message limb")
		}
	}
	return nil
}

// PublicKey encrypts to a receiver and the auditor and decrypts with the
// holder's own secret.
type PublicKey struct {
	p      *params.Params
	secret *big.Int
}

// NewPublicKey binds the holder secret: usk for a user, ask for the auditor.
func NewPublicKey(p *params.Params, secret *big.Int) *PublicKey {
	return &PublicKey{p: p, secret: new(big.Int).Set(secret)}
}

// Encrypt seals (du, dv, addr) for the holder of upk and the auditor.
// It returns the ciphertext together with the ephemeral r and message key k,
// which the transfer witness needs.
func (pk *PublicKey) Encrypt(apk address.AuditPub, upk address.Pub, du, dv, addr *big.Int) (*PCT, *big.Int, *big.Int, error) {
	r, err := pk.p.Random()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "draw r")
	}
	k, err := pk.p.Random()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "draw k")
	}

	c := pk.p.Curve
	sharedU, err := c.MultScalar(upk.PkEnc, r)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "receiver key")
	}
	sharedA, err := c.MultScalar(apk.APK, r)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "auditor key")
	}

	ct := &PCT{
		C0: c.BasePointMult(r),
		C1: pk.add(k, pk.p.H(sharedU)),
		C2: pk.add(k, pk.p.H(sharedA)),
	}
	msg := [MessageLen]*big.Int{du, dv, addr}
	for i, mask := range pk.masks(k) {
		ct.C3[i] = pk.add(msg[i], mask)
	}
	return ct, r, k, nil
}

// Decrypt opens ct with the holder secret. asAuditor selects the C2 branch.
func (pk *PublicKey) Decrypt(ct *PCT, asAuditor bool) (du, dv, addr *big.Int, err error) {
	if err := ct.complete(); err != nil {
		return nil, nil, nil, err
	}
	shared, err := pk.p.Curve.MultScalar(ct.C0, pk.secret)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(ErrDecryption, "c_0 not on curve: %v", err)
	}
	branch := ct.C1
	if asAuditor {
		branch = ct.C2
	}
	k := pk.sub(branch, pk.p.H(shared))

	var m [MessageLen]*big.Int
	for i, mask := range pk.masks(k) {
		m[i] = pk.sub(ct.C3[i], mask)
	}
	return m[0], m[1], m[2], nil
}

func (pk *PublicKey) masks(k *big.Int) [MessageLen]*big.Int {
	var out [MessageLen]*big.Int
	prev := pk.p.H(k)
	for i := range out {
		if i > 0 {
			prev = pk.p.H(prev)
		}
		out[i] = prev
	}
	return out
}

func (pk *PublicKey) add(a, b *big.Int) *big.Int {
	v := new(big.Int).Add(a, b)
	return v.Mod(v, pk.p.Prime())
}

func (pk *PublicKey) sub(a, b *big.Int) *big.Int {
	v := new(big.Int).Sub(a, b)
	return v.Mod(v, pk.p.Prime())
}
