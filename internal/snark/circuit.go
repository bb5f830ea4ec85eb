// circuit.go - Reference note circuit.
//
// NoteCircuit proves knowledge of the note behind a published nullifier and
// of the opening of the new commitment. Hashing inside the circuit is the
// MiMC7 Miyaguchi-Preneel compression over BN254 with the same round
// constants as the native hash package, so native and in-circuit digests
// agree.

package snark

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"zklay/internal/field"
	"zklay/internal/hash"
)

// NoteCircuitName is the registry name of NoteCircuit.
const NoteCircuitName = "ZKlay"

// Circuit is a gnark circuit that can be filled from named inputs.
type Circuit interface {
	frontend.Circuit
	// Assign fills every variable. wit may be the zero Witness when only
	// the public part is needed.
	Assign(stmt Statement, wit Witness) error
	AssignPublic(stmt Statement) error
}

// NoteCircuit constrains
//
//	cm  = H(du, dv, addr)
//	sn  = H(cm, sk)
//	cm_ = H(du_, dv_, addr_r)
type NoteCircuit struct {
	Addr  frontend.Variable `gnark:"addr,public"`
	Sn    frontend.Variable `gnark:"sn,public"`
	CmNew frontend.Variable `gnark:"cm_,public"`

	Cm    frontend.Variable `gnark:"cm"`
	Du    frontend.Variable `gnark:"du"`
	Dv    frontend.Variable `gnark:"dv"`
	Sk    frontend.Variable `gnark:"sk"`
	DuNew frontend.Variable `gnark:"du_"`
	DvNew frontend.Variable `gnark:"dv_"`
	AddrR frontend.Variable `gnark:"addr_r"`
}

func NewNoteCircuit() Circuit { return &NoteCircuit{} }

func (c *NoteCircuit) Define(api frontend.API) error {
	h := newMiMC7(api)
	api.AssertIsEqual(c.Cm, h.hash(c.Du, c.Dv, c.Addr))
	api.AssertIsEqual(c.Sn, h.hash(c.Cm, c.Sk))
	api.AssertIsEqual(c.CmNew, h.hash(c.DuNew, c.DvNew, c.AddrR))
	return nil
}

func (c *NoteCircuit) AssignPublic(stmt Statement) error {
	for _, in := range []struct {
		name string
		dst  *frontend.Variable
	}{
		{"addr", &c.Addr},
		{"sn", &c.Sn},
		{"cm_", &c.CmNew},
	} {
		v, err := stmt.Scalar(in.name)
		if err != nil {
			return err
		}
		*in.dst = v
	}
	return nil
}

func (c *NoteCircuit) Assign(stmt Statement, wit Witness) error {
	if err := c.AssignPublic(stmt); err != nil {
		return err
	}
	for _, in := range []struct {
		name string
		dst  *frontend.Variable
	}{
		{"cm", &c.Cm},
		{"du", &c.Du},
		{"dv", &c.Dv},
		{"sk", &c.Sk},
		{"du_", &c.DuNew},
		{"dv_", &c.DvNew},
		{"addr_r", &c.AddrR},
	} {
		v, err := wit.Scalar(in.name)
		if err != nil {
			return err
		}
		*in.dst = v
	}
	return nil
}

type mimc7 struct {
	api       frontend.API
	constants []*big.Int
}

func newMiMC7(api frontend.API) *mimc7 {
	p := field.BN254.Modulus()
	raw := hash.RoundConstants(hash.Rounds(hash.MiMC7))
	constants := make([]*big.Int, len(raw))
	for i, c := range raw {
		constants[i] = new(big.Int).Mod(c, p)
	}
	return &mimc7{api: api, constants: constants}
}

func (m *mimc7) encrypt(msg, key frontend.Variable) frontend.Variable {
	x := msg
	for _, c := range m.constants {
		t := m.api.Add(x, key, c)
		t2 := m.api.Mul(t, t)
		t4 := m.api.Mul(t2, t2)
		x = m.api.Mul(t4, t2, t)
	}
	return m.api.Add(x, key)
}

func (m *mimc7) compress(left, right frontend.Variable) frontend.Variable {
	return m.api.Add(m.encrypt(left, right), left, right)
}

// hash folds inputs left to right; a single input is hashed with itself.
func (m *mimc7) hash(inputs ...frontend.Variable) frontend.Variable {
	if len(inputs) == 1 {
		return m.compress(inputs[0], inputs[0])
	}
	acc := m.compress(inputs[0], inputs[1])
	for _, in := range inputs[2:] {
		acc = m.compress(acc, in)
	}
	return acc
}
