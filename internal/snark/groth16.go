// groth16.go - Groth16 proving service over gnark.
//
// Circuits are registered by name. Registration compiles the circuit (or
// reads a cached constraint system) and loads the proving and verifying keys
// from disk, running a fresh setup when they are missing. Keys generated this
// way come from a local, trusted setup and are only suitable for testing and
// local ledgers.

package snark

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zklay/internal/metrics"
)

var (
	ErrUnknownCircuit = errors.New("unknown circuit")
	ErrInvalidProof   = errors.New("proof verification failed")
)

// Prover produces and checks proofs for named circuits.
type Prover interface {
	Prove(ctx context.Context, circuit string, stmt Statement, wit Witness) (*Proof, error)
	VerificationKey(circuit string) (*VerificationKey, error)
	Verify(circuit string, stmt Statement, proof *Proof) error
}

// KeyFiles locates the artefacts of one circuit. Empty paths keep the
// artefact in memory only.
type KeyFiles struct {
	ProvingKey       string
	VerifyingKey     string
	ConstraintSystem string
}

type compiled struct {
	ccs        constraint.ConstraintSystem
	pk         groth16.ProvingKey
	vk         groth16.VerifyingKey
	newCircuit func() Circuit
}

// Groth16 is a Prover backed by gnark's Groth16 over BN254.
type Groth16 struct {
	mu       sync.RWMutex
	circuits map[string]*compiled
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewGroth16(log *zap.Logger, m *metrics.Metrics) *Groth16 {
	if log == nil {
		log = zap.NewNop()
	}
	return &Groth16{circuits: map[string]*compiled{}, log: log, metrics: m}
}

// Register compiles newCircuit under name and prepares its keys.
func (g *Groth16) Register(name string, newCircuit func() Circuit, files KeyFiles) error {
	start := time.Now()
	ccs, err := loadOrCompile(newCircuit(), files.ConstraintSystem)
	if err != nil {
		return errors.Wrapf(err, "circuit %s", name)
	}
	pk, vk, err := SetupOrLoadKeys(ccs, files.ProvingKey, files.VerifyingKey)
	if err != nil {
		return errors.Wrapf(err, "keys for circuit %s", name)
	}
	g.mu.Lock()
	g.circuits[name] = &compiled{ccs: ccs, pk: pk, vk: vk, newCircuit: newCircuit}
	g.mu.Unlock()
	g.log.Info("registered circuit",
		zap.String("circuit", name),
		zap.Int("constraints", ccs.GetNbConstraints()),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (g *Groth16) get(name string) (*compiled, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.circuits[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownCircuit, name)
	}
	return c, nil
}

func (g *Groth16) Prove(ctx context.Context, name string, stmt Statement, wit Witness) (*Proof, error) {
	c, err := g.get(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assignment := c.newCircuit()
	if err := assignment.Assign(stmt, wit); err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, errors.Wrap(err, "build witness")
	}

	start := time.Now()
	proof, err := groth16.Prove(c.ccs, c.pk, w)
	if err != nil {
		return nil, errors.Wrap(err, "prove")
	}
	g.metrics.ProofGenerated(name, time.Since(start))
	g.log.Debug("proof generated", zap.String("circuit", name), zap.Duration("took", time.Since(start)))

	bp, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, errors.Errorf("unexpected proof type %T", proof)
	}
	return &Proof{A: bp.Ar, B: bp.Bs, C: bp.Krs}, nil
}

func (g *Groth16) VerificationKey(name string) (*VerificationKey, error) {
	c, err := g.get(name)
	if err != nil {
		return nil, err
	}
	vk, ok := c.vk.(*groth16bn254.VerifyingKey)
	if !ok {
		return nil, errors.Errorf("unexpected verifying key type %T", c.vk)
	}
	out := &VerificationKey{
		Alpha: vk.G1.Alpha,
		Beta:  vk.G2.Beta,
		Gamma: vk.G2.Gamma,
		Delta: vk.G2.Delta,
		ABC:   append([]bn254.G1Affine(nil), vk.G1.K...),
	}
	return out, nil
}

func (g *Groth16) Verify(name string, stmt Statement, proof *Proof) error {
	c, err := g.get(name)
	if err != nil {
		return err
	}
	if proof == nil {
		return errors.Wrap(ErrInvalidProof, "nil proof")
	}
	assignment := c.newCircuit()
	if err := assignment.AssignPublic(stmt); err != nil {
		return err
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return errors.Wrap(err, "build public witness")
	}
	bp := &groth16bn254.Proof{Ar: proof.A, Bs: proof.B, Krs: proof.C}
	if err := groth16.Verify(bp, c.vk, w); err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	return nil
}

func loadOrCompile(circuit Circuit, path string) (constraint.ConstraintSystem, error) {
	if path != "" {
		if f, err := os.Open(path); err == nil {
			defer f.Close()
			ccs := groth16.NewCS(ecc.BN254)
			if _, err := ccs.ReadFrom(f); err != nil {
				return nil, errors.Wrapf(err, "read constraint system %s", path)
			}
			return ccs, nil
		}
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "create constraint system %s", path)
		}
		defer f.Close()
		if _, err := ccs.WriteTo(f); err != nil {
			return nil, errors.Wrapf(err, "write constraint system %s", path)
		}
	}
	return ccs, nil
}

// SaveProvingKey writes pk to path.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey writes vk to path.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// SetupOrLoadKeys loads the key pair from disk, or runs a setup and saves
// it when either file is missing. Empty paths skip the disk entirely.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	if pkPath != "" && vkPath != "" {
		pk, pkErr := LoadProvingKey(pkPath)
		vk, vkErr := LoadVerifyingKey(vkPath)
		if pkErr == nil && vkErr == nil {
			return pk, vk, nil
		}
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setup")
	}
	if pkPath != "" {
		if err := SaveProvingKey(pkPath, pk); err != nil {
			return nil, nil, err
		}
	}
	if vkPath != "" {
		if err := SaveVerifyingKey(vkPath, vk); err != nil {
			return nil, nil, err
		}
	}
	return pk, vk, nil
}

var _ Prover = (*Groth16)(nil)
