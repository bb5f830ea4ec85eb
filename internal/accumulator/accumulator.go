// accumulator.go - Dynamic RSA accumulator with a blinded membership proof.
//
// ACC = W^(p_1 ... p_k · m_1 ... m_n) mod N where p_i are the first k odd
// primes (k is the security level) and m_j are the accumulated members in
// insertion order. A proof for a subset U of members shows knowledge of an
// exponent s·u such that W_hat^(s·u) = ACC, with a Pedersen commitment to
// (s, r, u) on BN254 G1 bound into the Fiat-Shamir challenge.

package accumulator

import (
	"crypto/rand"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/pkg/errors"

	"zklay/internal/field"
	"zklay/internal/hash"
)

const (
	// DefaultSecLevel is the number of small primes folded into ACC.
	DefaultSecLevel = 256
	// DefaultW is the accumulator base.
	DefaultW = 2
	// LimbBits is the width of a scalar limb in the commitment.
	LimbBits = 253
	// EncodingLen is the big-endian width used for challenge inputs.
	EncodingLen = 256
)

// rsa2048 is the RSA-2048 factoring challenge modulus. Nobody is known to
// hold its factorization.
const rsa2048 = "25195908475657893494027183240048398571429282126204032027777137836043662020707595556264018525880784406918290641249515082189298559149176184502808489120072844992687392807287776735971418347270261896375014971824691165077613379859095700097330459748808428401797429100642458691817195118746121515172654632282216869987549182422433637259085141865462043576798423387184774447920739934236584823824281198163815010674810451660377306056201619676256133844143603833904414952634432190114657544454178424020924616515723350778707749817125772467962926386356373289912154831438167899885040445364023527381951378636564391212010397122822120720357"

// DefaultN returns a copy of the default modulus.
func DefaultN() *big.Int {
	n, _ := new(big.Int).SetString(rsa2048, 10)
	return n
}

var ErrEmptySubset = errors.New("member subset is empty")

// Data is the mutable accumulator state.
type Data struct {
	ACC    *big.Int   `json:"ACC"`
	CmList []*big.Int `json:"cm_list"`
}

// Accumulator is an RSA accumulator instance. It is not safe for concurrent
// use.
type Accumulator struct {
	W        *big.Int `json:"W"`
	N        *big.Int `json:"N"`
	SecLevel int      `json:"SEC_LEV"`
	Data     Data     `json:"acc_data"`
}

// New returns an accumulator over the default modulus with no members.
// secLevel <= 0 selects DefaultSecLevel.
func New(secLevel int) (*Accumulator, error) {
	if secLevel <= 0 {
		secLevel = DefaultSecLevel
	}
	if secLevel > len(smallPrimes) {
		return nil, errors.Errorf("security level %d exceeds prime table (%d)", secLevel, len(smallPrimes))
	}
	a := &Accumulator{
		W:        big.NewInt(DefaultW),
		N:        DefaultN(),
		SecLevel: secLevel,
		Data:     Data{CmList: []*big.Int{}},
	}
	a.Accumulate()
	return a, nil
}

// PrimeGroup returns the small primes in use.
func (a *Accumulator) PrimeGroup() []*big.Int {
	return smallPrimes[:a.SecLevel]
}

// Add appends members. ACC is not updated until Accumulate.
func (a *Accumulator) Add(members ...*big.Int) {
	for _, m := range members {
		a.Data.CmList = append(a.Data.CmList, new(big.Int).Set(m))
	}
}

// Accumulate recomputes ACC from W over the prime group followed by every
// member in insertion order.
func (a *Accumulator) Accumulate() {
	acc := new(big.Int).Set(a.W)
	for _, e := range a.PrimeGroup() {
		acc.Exp(acc, e, a.N)
	}
	for _, e := range a.Data.CmList {
		acc.Exp(acc, e, a.N)
	}
	a.Data.ACC = acc
}

// Proof is a blinded membership proof.
type Proof struct {
	WHat *big.Int       `json:"W_hat"`
	CSr  bn254.G1Affine `json:"-"`
	K    *big.Int       `json:"k"`
	H    *big.Int       `json:"h"`
}

// Compute proves that every element of members is accumulated. bases are the
// three commitment basis points for s, r and u.
func (a *Accumulator) Compute(members []*big.Int, bases [3]bn254.G1Affine) (*Proof, error) {
	if len(members) == 0 {
		return nil, ErrEmptySubset
	}
	mulU := big.NewInt(1)
	for _, m := range members {
		mulU.Mul(mulU, m)
	}

	bits, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(a.SecLevel)))
	if err != nil {
		return nil, errors.Wrap(err, "draw prime split")
	}
	wHat := new(big.Int).Set(a.W)
	mulS := big.NewInt(1)
	for i, p := range a.PrimeGroup() {
		if bits.Bit(i) == 0 {
			wHat.Exp(wHat, p, a.N)
		} else {
			mulS.Mul(mulS, p)
		}
	}

	for _, c := range a.Data.CmList {
		if !contains(members, c) {
			wHat.Exp(wHat, c, a.N)
		}
	}

	rBits := mulU.BitLen() + mulS.BitLen() + a.SecLevel + 2*a.SecLevel
	r, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(rBits)))
	if err != nil {
		return nil, errors.Wrap(err, "draw blinding")
	}
	bigR := new(big.Int).Exp(wHat, r, a.N)

	cSr := Commit(bases, mulS, r, mulU)
	h := challenge(wHat, &cSr, bigR)

	k := new(big.Int).Mul(mulS, mulU)
	k.Mul(k, h).Add(k, r)

	return &Proof{WHat: wHat, CSr: cSr, K: k, H: h}, nil
}

// Verify checks a proof against the current ACC.
func (a *Accumulator) Verify(proof *Proof) bool {
	if proof == nil || proof.WHat == nil || proof.K == nil || proof.H == nil || a.Data.ACC == nil {
		return false
	}
	inv := new(big.Int).ModInverse(a.Data.ACC, a.N)
	if inv == nil {
		return false
	}
	ret := new(big.Int).Exp(proof.WHat, proof.K, a.N)
	ret.Mul(ret, new(big.Int).Exp(inv, proof.H, a.N)).Mod(ret, a.N)
	return challenge(proof.WHat, &proof.CSr, ret).Cmp(proof.H) == 0
}

// Commit returns s·B0 + r·B1 + u·B2 with each scalar applied limb by limb:
// a value v = sum v_i·2^(253 i) contributes sum v_i·B.
func Commit(bases [3]bn254.G1Affine, s, r, u *big.Int) bn254.G1Affine {
	var acc bn254.G1Affine
	acc.X.SetZero()
	acc.Y.SetZero()
	for i, v := range []*big.Int{s, r, u} {
		for _, limb := range Limbs(v) {
			var t bn254.G1Affine
			t.ScalarMultiplication(&bases[i], limb)
			acc.Add(&acc, &t)
		}
	}
	return acc
}

// Limbs splits v into little-endian LimbBits-wide pieces. Zero yields a
// single zero limb.
func Limbs(v *big.Int) []*big.Int {
	if v.Sign() == 0 {
		return []*big.Int{new(big.Int)}
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), LimbBits), big.NewInt(1))
	rest := new(big.Int).Set(v)
	var out []*big.Int
	for rest.Sign() > 0 {
		out = append(out, new(big.Int).And(rest, mask))
		rest.Rsh(rest, LimbBits)
	}
	return out
}

// challenge is MiMC7 over BN254 of the 256-byte encodings of W_hat, the
// commitment coordinates and R.
func challenge(wHat *big.Int, c *bn254.G1Affine, r *big.Int) *big.Int {
	cx := c.X.BigInt(new(big.Int))
	cy := c.Y.BigInt(new(big.Int))
	inputs := make([]any, 0, 4)
	for _, v := range []*big.Int{wHat, cx, cy, r} {
		inputs = append(inputs, v.FillBytes(make([]byte, EncodingLen)))
	}
	h, err := hash.Sum(challengeHash, inputs...)
	if err != nil {
		panic(err)
	}
	return h
}

var challengeHash = hash.Must(hash.MiMC7, field.BN254)

func contains(set []*big.Int, v *big.Int) bool {
	for _, s := range set {
		if s.Cmp(v) == 0 {
			return true
		}
	}
	return false
}
