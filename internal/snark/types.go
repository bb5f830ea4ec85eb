// types.go - Proving-service data: named circuit inputs, proofs and
// verification keys.
//
// Inputs are a flat namespace of scalars and fixed-size arrays. The JSON form
// maps a scalar name to its hex value and an array name to an object keyed by
// the decimal element index:
//
//	{"sn": "0a..", "CT": {"0": "..", "1": "..", "2": ".."}}
//
// Curve points are written as hex coordinate lists; a G2 coordinate is a
// two-element list (A0, A1).

package snark

import (
	"encoding/json"
	"math/big"
	"sort"
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/pkg/errors"

	"zklay/internal/field"
)

var ErrMissingInput = errors.New("missing circuit input")

// Inputs is a set of named circuit inputs.
type Inputs struct {
	Scalars map[string]*big.Int
	Arrays  map[string][]*big.Int
}

func NewInputs() Inputs {
	return Inputs{Scalars: map[string]*big.Int{}, Arrays: map[string][]*big.Int{}}
}

func (in *Inputs) Set(name string, v *big.Int) {
	if in.Scalars == nil {
		in.Scalars = map[string]*big.Int{}
	}
	in.Scalars[name] = new(big.Int).Set(v)
}

func (in *Inputs) SetArray(name string, vs ...*big.Int) {
	if in.Arrays == nil {
		in.Arrays = map[string][]*big.Int{}
	}
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = new(big.Int).Set(v)
	}
	in.Arrays[name] = out
}

// Scalar returns the named scalar or ErrMissingInput.
func (in Inputs) Scalar(name string) (*big.Int, error) {
	v, ok := in.Scalars[name]
	if !ok || v == nil {
		return nil, errors.Wrap(ErrMissingInput, name)
	}
	return v, nil
}

func (in Inputs) Array(name string) ([]*big.Int, error) {
	v, ok := in.Arrays[name]
	if !ok {
		return nil, errors.Wrap(ErrMissingInput, name)
	}
	return v, nil
}

// Names lists every input name in sorted order.
func (in Inputs) Names() []string {
	names := make([]string, 0, len(in.Scalars)+len(in.Arrays))
	for n := range in.Scalars {
		names = append(names, n)
	}
	for n := range in.Arrays {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge returns the union of in and other. Names in other win.
func (in Inputs) Merge(other Inputs) Inputs {
	out := NewInputs()
	for _, src := range []Inputs{in, other} {
		for n, v := range src.Scalars {
			out.Set(n, v)
		}
		for n, v := range src.Arrays {
			out.SetArray(n, v...)
		}
	}
	return out
}

func (in Inputs) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(in.Scalars)+len(in.Arrays))
	for n, v := range in.Scalars {
		raw[n] = field.Hex(v)
	}
	for n, vs := range in.Arrays {
		arr := make(map[string]string, len(vs))
		for i, v := range vs {
			arr[strconv.Itoa(i)] = field.Hex(v)
		}
		raw[n] = arr
	}
	return json.Marshal(raw)
}

func (in *Inputs) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = NewInputs()
	for name, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			v, err := field.ParseHex(s)
			if err != nil {
				return errors.Wrapf(err, "input %s", name)
			}
			in.Scalars[name] = v
			continue
		}
		var arr map[string]string
		if err := json.Unmarshal(msg, &arr); err != nil {
			return errors.Wrapf(err, "input %s", name)
		}
		vs := make([]*big.Int, len(arr))
		for k, s := range arr {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 || i >= len(arr) {
				return errors.Errorf("input %s: bad index %q", name, k)
			}
			v, err := field.ParseHex(s)
			if err != nil {
				return errors.Wrapf(err, "input %s[%d]", name, i)
			}
			vs[i] = v
		}
		in.Arrays[name] = vs
	}
	return nil
}

// Statement holds the public inputs of a proof.
type Statement struct{ Inputs }

// Witness holds the private inputs of a proof.
type Witness struct{ Inputs }

func NewStatement() Statement { return Statement{NewInputs()} }
func NewWitness() Witness     { return Witness{NewInputs()} }

// Proof is a Groth16 proof over BN254.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// VerificationKey is the public part of a Groth16 setup. ABC holds one point
// per public input plus the constant term.
type VerificationKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	ABC   []bn254.G1Affine
}

type g1JSON [2]string
type g2JSON [2][2]string

func g1ToJSON(p *bn254.G1Affine) g1JSON {
	var x, y big.Int
	p.X.BigInt(&x)
	p.Y.BigInt(&y)
	return g1JSON{field.Hex(&x), field.Hex(&y)}
}

func g1FromJSON(raw g1JSON) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	x, err := field.ParseHex(raw[0])
	if err != nil {
		return p, err
	}
	y, err := field.ParseHex(raw[1])
	if err != nil {
		return p, err
	}
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	if !p.IsOnCurve() {
		return p, errors.New("G1 point not on curve")
	}
	return p, nil
}

func g2ToJSON(p *bn254.G2Affine) g2JSON {
	var a0, a1, b0, b1 big.Int
	p.X.A0.BigInt(&a0)
	p.X.A1.BigInt(&a1)
	p.Y.A0.BigInt(&b0)
	p.Y.A1.BigInt(&b1)
	return g2JSON{
		{field.Hex(&a0), field.Hex(&a1)},
		{field.Hex(&b0), field.Hex(&b1)},
	}
}

func g2FromJSON(raw g2JSON) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	var coords [4]*big.Int
	for i, s := range []string{raw[0][0], raw[0][1], raw[1][0], raw[1][1]} {
		v, err := field.ParseHex(s)
		if err != nil {
			return p, err
		}
		coords[i] = v
	}
	p.X.A0.SetBigInt(coords[0])
	p.X.A1.SetBigInt(coords[1])
	p.Y.A0.SetBigInt(coords[2])
	p.Y.A1.SetBigInt(coords[3])
	if !p.IsOnCurve() {
		return p, errors.New("G2 point not on curve")
	}
	return p, nil
}

type proofJSON struct {
	A g1JSON `json:"a"`
	B g2JSON `json:"b"`
	C g1JSON `json:"c"`
}

func (p Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofJSON{A: g1ToJSON(&p.A), B: g2ToJSON(&p.B), C: g1ToJSON(&p.C)})
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var raw proofJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if p.A, err = g1FromJSON(raw.A); err != nil {
		return errors.Wrap(err, "proof a")
	}
	if p.B, err = g2FromJSON(raw.B); err != nil {
		return errors.Wrap(err, "proof b")
	}
	if p.C, err = g1FromJSON(raw.C); err != nil {
		return errors.Wrap(err, "proof c")
	}
	return nil
}

type vkJSON struct {
	Alpha g1JSON   `json:"alpha"`
	Beta  g2JSON   `json:"beta"`
	Gamma g2JSON   `json:"gamma"`
	Delta g2JSON   `json:"delta"`
	ABC   []g1JSON `json:"ABC"`
}

func (vk VerificationKey) MarshalJSON() ([]byte, error) {
	raw := vkJSON{
		Alpha: g1ToJSON(&vk.Alpha),
		Beta:  g2ToJSON(&vk.Beta),
		Gamma: g2ToJSON(&vk.Gamma),
		Delta: g2ToJSON(&vk.Delta),
		ABC:   make([]g1JSON, len(vk.ABC)),
	}
	for i := range vk.ABC {
		raw.ABC[i] = g1ToJSON(&vk.ABC[i])
	}
	return json.Marshal(raw)
}

func (vk *VerificationKey) UnmarshalJSON(data []byte) error {
	var raw vkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if vk.Alpha, err = g1FromJSON(raw.Alpha); err != nil {
		return errors.Wrap(err, "vk alpha")
	}
	if vk.Beta, err = g2FromJSON(raw.Beta); err != nil {
		return errors.Wrap(err, "vk beta")
	}
	if vk.Gamma, err = g2FromJSON(raw.Gamma); err != nil {
		return errors.Wrap(err, "vk gamma")
	}
	if vk.Delta, err = g2FromJSON(raw.Delta); err != nil {
		return errors.Wrap(err, "vk delta")
	}
	vk.ABC = make([]bn254.G1Affine, len(raw.ABC))
	for i, p := range raw.ABC {
		if vk.ABC[i], err = g1FromJSON(p); err != nil {
			return errors.Wrapf(err, "vk ABC[%d]", i)
		}
	}
	return nil
}
