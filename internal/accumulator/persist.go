// persist.go - File-backed accumulator and proof encoding.

package accumulator

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/pkg/errors"

	"zklay/internal/field"
)

// Persistent is an accumulator bound to a JSON file.
type Persistent struct {
	*Accumulator
	path string
}

// Open loads the accumulator at path, or starts a fresh one at the default
// security level when the file does not exist. Nothing is written until Save.
func Open(path string) (*Persistent, error) {
	return OpenLevel(path, DefaultSecLevel)
}

// OpenLevel is Open with the security level used for a fresh accumulator.
// A saved accumulator keeps its own level.
func OpenLevel(path string, secLevel int) (*Persistent, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		acc, err := New(secLevel)
		if err != nil {
			return nil, err
		}
		return &Persistent{Accumulator: acc, path: path}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open accumulator %s", path)
	}
	defer f.Close()

	var acc Accumulator
	if err := json.NewDecoder(f).Decode(&acc); err != nil {
		return nil, errors.Wrapf(err, "decode accumulator %s", path)
	}
	if acc.W == nil || acc.N == nil || acc.SecLevel <= 0 || acc.SecLevel > len(smallPrimes) {
		return nil, errors.Errorf("accumulator %s: incomplete parameters", path)
	}
	if acc.Data.ACC == nil {
		acc.Accumulate()
	}
	if acc.Data.CmList == nil {
		acc.Data.CmList = []*big.Int{}
	}
	return &Persistent{Accumulator: &acc, path: path}, nil
}

// Path returns the backing file.
func (p *Persistent) Path() string { return p.path }

// Save replaces the backing file. The new content is written to a temporary
// file in the same directory and renamed over the old one.
func (p *Persistent) Save() error {
	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create accumulator %s", p.path)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Accumulator); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "encode accumulator %s", p.path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync accumulator %s", p.path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close accumulator %s", p.path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), p.path), "replace accumulator %s", p.path)
}

type pointJSON struct {
	X string `json:"x"`
	Y string `json:"y"`
}

type proofJSON struct {
	WHat *big.Int  `json:"W_hat"`
	CSr  pointJSON `json:"C_sr"`
	K    *big.Int  `json:"k"`
	H    *big.Int  `json:"h"`
}

func (p Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofJSON{
		WHat: p.WHat,
		CSr: pointJSON{
			X: field.Hex(p.CSr.X.BigInt(new(big.Int))),
			Y: field.Hex(p.CSr.Y.BigInt(new(big.Int))),
		},
		K: p.K,
		H: p.H,
	})
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var raw proofJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.WHat == nil || raw.K == nil || raw.H == nil {
		return errors.New("proof: missing field")
	}
	c, err := ParsePoint(raw.CSr.X, raw.CSr.Y)
	if err != nil {
		return errors.Wrap(err, "C_sr")
	}
	p.WHat, p.CSr, p.K, p.H = raw.WHat, c, raw.K, raw.H
	return nil
}

// ParsePoint decodes hex coordinates into a G1 point and checks it is on
// the curve. (0, 0) is the point at infinity.
func ParsePoint(x, y string) (bn254.G1Affine, error) {
	var pt bn254.G1Affine
	xv, err := field.ParseHex(x)
	if err != nil {
		return pt, err
	}
	yv, err := field.ParseHex(y)
	if err != nil {
		return pt, err
	}
	pt.X.SetBigInt(xv)
	pt.Y.SetBigInt(yv)
	if !pt.IsOnCurve() {
		return pt, errors.Errorf("point (%s, %s) not on bn254", x, y)
	}
	return pt, nil
}

// DefaultBases returns the three fixed commitment basis points.
func DefaultBases() [3]bn254.G1Affine {
	coords := [3][2]string{
		{"2af03b0046e15e8f24cdf4515d07cdbc5546ccd73fef162d453c55c6a635f6ee", "1a7710fe73530a5d4a81c00725656b73dbac818e544462d2227d09b269813d90"},
		{"2825a2f1be85b53051e3affe3f3d3f68ebc52e7c3adc18d6e869630b67fabf3d", "094d9300fbef14f29e7c0de15ac229a719cae308cd100f9f06bc540ad1369bec"},
		{"292b1333bfd842684eda6bb553d055ef992e2f40fb296e01753e15df3b22c69e", "187b68654c41f2723dee3c028c1f06d36de5448a02857365bb1acc9c90f2d04a"},
	}
	var out [3]bn254.G1Affine
	for i, c := range coords {
		pt, err := ParsePoint(c[0], c[1])
		if err != nil {
			panic(err)
		}
		out[i] = pt
	}
	return out
}
