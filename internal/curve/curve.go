// curve.go - Affine Montgomery curve arithmetic: By^2 = x^3 + Ax^2 + x (mod p).
//
// Public keys and ECDH shares are carried as x-coordinates only; y is
// recovered on demand. Both supported families have cofactor 8 and a base
// point of prime order derived deterministically from the curve equation.

package curve

import (
	"math/big"
	"sync"

	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/pkg/errors"

	"zklay/internal/field"
)

// ErrInvalidPoint signals a coordinate that does not lie on the curve.
var ErrInvalidPoint = errors.New("invalid curve point")

// Point is an affine point. The identity has Inf set and no coordinates.
type Point struct {
	X, Y *big.Int
	Inf  bool
}

// Identity returns the point at infinity.
func Identity() Point { return Point{Inf: true} }

// Params describes one curve family.
type Params struct {
	Family   field.Family
	A, B     *big.Int
	Order    *big.Int // prime subgroup order
	Cofactor *big.Int
}

// Curve is the point-operation capability used by the encryption layer and
// key derivation.
type Curve interface {
	Params() Params
	BasePoint() Point
	// BasePointMult returns the x-coordinate of s·G (0 for the identity).
	BasePointMult(s *big.Int) *big.Int
	// MultScalar returns the x-coordinate of s·P where P is recovered from baseX.
	MultScalar(baseX, s *big.Int) (*big.Int, error)
	ComputeYCoordinate(x *big.Int) (*big.Int, error)
	AddAffinePoint(p, q Point) Point
	DoubleAffinePoint(p Point) Point
	ComputeScalarMul(p Point, s *big.Int) Point
	AssertValidPointOnEC(p Point) error
	Equal(p, q Point) bool
}

func mustInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("curve: bad constant " + s)
	}
	return v
}

// ParamsFor returns the Montgomery parameters of a family.
func ParamsFor(f field.Family) Params {
	switch f {
	case field.BLS12381:
		p := f.Modulus()
		return Params{
			Family:   f,
			A:        big.NewInt(40962),
			B:        new(big.Int).Sub(p, big.NewInt(40964)),
			Order:    mustInt("6554484396890773809930967563523245729705921265872317281365359162392183254199"),
			Cofactor: big.NewInt(8),
		}
	default:
		return Params{
			Family:   field.BN254,
			A:        big.NewInt(126932),
			B:        big.NewInt(1),
			Order:    mustInt("2736030358979909402780800718157159386074658810754251464600343418943805806723"),
			Cofactor: big.NewInt(8),
		}
	}
}

var (
	curvesMu sync.Mutex
	curves   = map[field.Family]Curve{}
)

// New returns the curve of a family. Curves are immutable and cached, so the
// base point derivation runs once per family.
func New(f field.Family) Curve {
	curvesMu.Lock()
	defer curvesMu.Unlock()
	if c, ok := curves[f]; ok {
		return c
	}
	var c Curve
	if f == field.BLS12381 {
		c = newMontgomery[bls12381fr.Element](ParamsFor(f))
	} else {
		c = newMontgomery[bn254fr.Element](ParamsFor(f))
	}
	curves[f] = c
	return c
}

type affine[T any] struct {
	x, y T
	inf  bool
}

type montgomery[T any, PT field.Element[T]] struct {
	params Params
	a, b   T
	base   affine[T]
}

func newMontgomery[T any, PT field.Element[T]](params Params) *montgomery[T, PT] {
	m := &montgomery[T, PT]{
		params: params,
		a:      field.FromBig[T, PT](params.A),
		b:      field.FromBig[T, PT](params.B),
	}
	m.base = m.deriveBase()
	return m
}

// deriveBase scans x = 1, 2, ... for the first point whose cofactor multiple
// has exactly the prime subgroup order.
func (m *montgomery[T, PT]) deriveBase() affine[T] {
	for x := uint64(1); ; x++ {
		var fx T
		PT(&fx).SetUint64(x)
		y, ok := m.recoverY(&fx)
		if !ok || PT(&y).IsZero() {
			continue
		}
		g := m.mul(affine[T]{x: fx, y: y}, m.params.Cofactor)
		if g.inf || !m.mul(g, m.params.Order).inf {
			continue
		}
		g.y = m.canonical(&g.y)
		return g
	}
}

func (m *montgomery[T, PT]) Params() Params { return m.params }

func (m *montgomery[T, PT]) BasePoint() Point { return m.toPoint(m.base) }

func (m *montgomery[T, PT]) BasePointMult(s *big.Int) *big.Int {
	return m.xOf(m.mul(m.base, s))
}

func (m *montgomery[T, PT]) MultScalar(baseX, s *big.Int) (*big.Int, error) {
	fx := field.FromBig[T, PT](baseX)
	y, ok := m.recoverY(&fx)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidPoint, "x=%s", baseX)
	}
	return m.xOf(m.mul(affine[T]{x: fx, y: y}, s)), nil
}

func (m *montgomery[T, PT]) ComputeYCoordinate(x *big.Int) (*big.Int, error) {
	fx := field.FromBig[T, PT](x)
	y, ok := m.recoverY(&fx)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidPoint, "no y for x=%s", x)
	}
	return field.ToBig[T, PT](&y), nil
}

func (m *montgomery[T, PT]) AddAffinePoint(p, q Point) Point {
	return m.toPoint(m.add(m.fromPoint(p), m.fromPoint(q)))
}

func (m *montgomery[T, PT]) DoubleAffinePoint(p Point) Point {
	return m.toPoint(m.double(m.fromPoint(p)))
}

func (m *montgomery[T, PT]) ComputeScalarMul(p Point, s *big.Int) Point {
	return m.toPoint(m.mul(m.fromPoint(p), s))
}

func (m *montgomery[T, PT]) AssertValidPointOnEC(p Point) error {
	if p.Inf {
		return nil
	}
	if p.X == nil || p.Y == nil {
		return errors.Wrap(ErrInvalidPoint, "missing coordinate")
	}
	mod := m.params.Family.Modulus()
	if p.X.Sign() < 0 || p.Y.Sign() < 0 || p.X.Cmp(mod) >= 0 || p.Y.Cmp(mod) >= 0 {
		return errors.Wrap(ErrInvalidPoint, "coordinate out of range")
	}
	a := m.fromPoint(p)
	if !m.onCurve(&a) {
		return errors.Wrapf(ErrInvalidPoint, "(%s, %s)", p.X, p.Y)
	}
	return nil
}

func (m *montgomery[T, PT]) Equal(p, q Point) bool {
	if p.Inf || q.Inf {
		return p.Inf == q.Inf
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// rhs returns (x^3 + A x^2 + x) / B.
func (m *montgomery[T, PT]) rhs(x *T) T {
	var x2, t, binv T
	PT(&x2).Square(x)
	PT(&t).Mul(&x2, x)
	var ax2 T
	PT(&ax2).Mul(&m.a, &x2)
	PT(&t).Add(&t, &ax2)
	PT(&t).Add(&t, x)
	PT(&binv).Inverse(&m.b)
	PT(&t).Mul(&t, &binv)
	return t
}

func (m *montgomery[T, PT]) onCurve(p *affine[T]) bool {
	var y2 T
	PT(&y2).Square(&p.y)
	r := m.rhs(&p.x)
	return PT(&y2).Equal(&r)
}

// recoverY solves the curve equation for y and returns the smaller root.
func (m *montgomery[T, PT]) recoverY(x *T) (T, bool) {
	r := m.rhs(x)
	var y T
	if PT(&y).Sqrt(&r) == nil {
		return y, false
	}
	return m.canonical(&y), true
}

func (m *montgomery[T, PT]) canonical(y *T) T {
	var neg T
	PT(&neg).Neg(y)
	if PT(&neg).Cmp(y) < 0 {
		return neg
	}
	var out T
	PT(&out).Set(y)
	return out
}

func (m *montgomery[T, PT]) double(p affine[T]) affine[T] {
	if p.inf || PT(&p.y).IsZero() {
		return affine[T]{inf: true}
	}
	var num, den, t, lambda T
	// lambda = (3x^2 + 2Ax + 1) / (2By)
	PT(&t).Square(&p.x)
	PT(&num).Double(&t)
	PT(&num).Add(&num, &t)
	PT(&t).Mul(&m.a, &p.x)
	PT(&t).Double(&t)
	PT(&num).Add(&num, &t)
	PT(&t).SetOne()
	PT(&num).Add(&num, &t)
	PT(&den).Mul(&m.b, &p.y)
	PT(&den).Double(&den)
	PT(&den).Inverse(&den)
	PT(&lambda).Mul(&num, &den)
	return m.finish(&lambda, &p.x, &p.x, &p.y)
}

func (m *montgomery[T, PT]) add(p, q affine[T]) affine[T] {
	if p.inf {
		return q
	}
	if q.inf {
		return p
	}
	if PT(&p.x).Equal(&q.x) {
		if PT(&p.y).Equal(&q.y) {
			return m.double(p)
		}
		return affine[T]{inf: true}
	}
	var num, den, lambda T
	PT(&num).Sub(&q.y, &p.y)
	PT(&den).Sub(&q.x, &p.x)
	PT(&den).Inverse(&den)
	PT(&lambda).Mul(&num, &den)
	return m.finish(&lambda, &p.x, &q.x, &p.y)
}

// finish computes x3 = B·lambda^2 - A - x1 - x2 and y3 = lambda(x1 - x3) - y1.
func (m *montgomery[T, PT]) finish(lambda, x1, x2, y1 *T) affine[T] {
	var r affine[T]
	var t T
	PT(&t).Square(lambda)
	PT(&r.x).Mul(&m.b, &t)
	PT(&r.x).Sub(&r.x, &m.a)
	PT(&r.x).Sub(&r.x, x1)
	PT(&r.x).Sub(&r.x, x2)
	PT(&t).Sub(x1, &r.x)
	PT(&r.y).Mul(lambda, &t)
	PT(&r.y).Sub(&r.y, y1)
	return r
}

// mul is left-to-right double-and-add over a fixed number of bits, so the
// operation sequence depends only on the bit length bound, not on where the
// scalar's high bit sits.
func (m *montgomery[T, PT]) mul(p affine[T], s *big.Int) affine[T] {
	k := new(big.Int).Set(s)
	if k.Sign() < 0 {
		k.Neg(k)
		PT(&p.y).Neg(&p.y)
	}
	bits := 256
	if k.BitLen() > bits {
		bits = k.BitLen()
	}
	acc := affine[T]{inf: true}
	for i := bits - 1; i >= 0; i-- {
		acc = m.double(acc)
		if k.Bit(i) == 1 {
			acc = m.add(acc, p)
		}
	}
	return acc
}

func (m *montgomery[T, PT]) xOf(p affine[T]) *big.Int {
	if p.inf {
		return new(big.Int)
	}
	return field.ToBig[T, PT](&p.x)
}

func (m *montgomery[T, PT]) toPoint(p affine[T]) Point {
	if p.inf {
		return Identity()
	}
	return Point{X: field.ToBig[T, PT](&p.x), Y: field.ToBig[T, PT](&p.y)}
}

func (m *montgomery[T, PT]) fromPoint(p Point) affine[T] {
	if p.Inf {
		return affine[T]{inf: true}
	}
	return affine[T]{
		x: field.FromBig[T, PT](p.X),
		y: field.FromBig[T, PT](p.Y),
	}
}
