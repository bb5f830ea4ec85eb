// note.go - Notes, commitments and nullifiers.
//
// A Note is the plaintext (du, dv, addr) carried inside a public-key
// ciphertext. Its commitment cm = H(du, dv, addr) is what the ledger sees and
// its nullifier sn = H(cm, sk) marks it spent. Both are computed by the caller
// over a Params context and are never stored inside the Note.

package note

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/pkg/errors"

	"zklay/internal/field"
	"zklay/internal/params"
)

// Size is the length of a serialized note: du, dv and addr in 32 bytes each.
const Size = 3 * field.ByteLen

// ShortLen is the number of hex characters in a short commitment.
const ShortLen = 8

var ErrMalformedNote = errors.New("malformed note")

// Note is a confidential value held by an address.
type Note struct {
	Du   *big.Int
	Dv   *big.Int
	Addr *big.Int
}

// Bytes encodes du‖dv‖addr.
func (n *Note) Bytes() []byte {
	out := make([]byte, 0, Size)
	for _, v := range []*big.Int{n.Du, n.Dv, n.Addr} {
		out = append(out, field.Bytes32(v)...)
	}
	return out
}

// FromBytes decodes the layout written by Bytes.
func FromBytes(b []byte) (*Note, error) {
	if len(b) != Size {
		return nil, errors.Wrapf(ErrMalformedNote, "got %d bytes, want %d", len(b), Size)
	}
	w := field.ByteLen
	return &Note{
		Du:   new(big.Int).SetBytes(b[:w]),
		Dv:   new(big.Int).SetBytes(b[w : 2*w]),
		Addr: new(big.Int).SetBytes(b[2*w:]),
	}, nil
}

// Commitment is H(du, dv, addr).
func Commitment(p *params.Params, n *Note) *big.Int {
	return p.H(n.Du, n.Dv, n.Addr)
}

// Nullifier is H(cm, sk).
func Nullifier(p *params.Params, cm, sk *big.Int) *big.Int {
	return p.H(cm, sk)
}

// ShortCommitment is the leading hex prefix used to name a note.
func ShortCommitment(cm *big.Int) string {
	return field.Hex(cm)[:ShortLen]
}

// Description is a note the wallet owns, located at a commitment-tree
// address.
type Description struct {
	Note       Note
	Address    uint64
	Commitment *big.Int
}

// Short returns the short commitment of the description.
func (d *Description) Short() string {
	return ShortCommitment(d.Commitment)
}

func (d *Description) String() string {
	return fmt.Sprintf("%s @%d value=%s", d.Short(), d.Address, d.Note.Dv)
}

type noteJSON struct {
	Du   string `json:"du"`
	Dv   string `json:"dv"`
	Addr string `json:"addr"`
}

type descriptionJSON struct {
	Note       noteJSON `json:"note"`
	Address    string   `json:"address"`
	Commitment string   `json:"commitment"`
}

func (d Description) MarshalJSON() ([]byte, error) {
	if d.Note.Du == nil || d.Note.Dv == nil || d.Note.Addr == nil || d.Commitment == nil {
		return nil, errors.Wrap(ErrMalformedNote, "incomplete description")
	}
	return json.Marshal(descriptionJSON{
		Note: noteJSON{
			Du:   field.Hex(d.Note.Du),
			Dv:   field.Hex(d.Note.Dv),
			Addr: field.Hex(d.Note.Addr),
		},
		Address:    strconv.FormatUint(d.Address, 10),
		Commitment: field.Hex(d.Commitment),
	})
}

func (d *Description) UnmarshalJSON(data []byte) error {
	var raw descriptionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(ErrMalformedNote, err.Error())
	}
	vals := make([]*big.Int, 4)
	for i, s := range []string{raw.Note.Du, raw.Note.Dv, raw.Note.Addr, raw.Commitment} {
		v, err := field.ParseHex(s)
		if err != nil {
			return errors.Wrap(ErrMalformedNote, err.Error())
		}
		vals[i] = v
	}
	addr, err := strconv.ParseUint(raw.Address, 10, 64)
	if err != nil {
		return errors.Wrapf(ErrMalformedNote, "address %q", raw.Address)
	}
	d.Note = Note{Du: vals[0], Dv: vals[1], Addr: vals[2]}
	d.Address = addr
	d.Commitment = vals[3]
	return nil
}
