// address.go - User and auditor key material.
//
// A user address is derived from a single secret usk:
//
//	pk_own = H(usk)
//	pk_enc = x(usk·G)
//	addr   = H(pk_own, pk_enc)
//
// The auditor holds ask with apk = x(ask·G). Keys are stored as a secret JSON
// file plus a ".pub" companion carrying only the public half.

package address

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"zklay/internal/field"
	"zklay/internal/params"
)

var (
	ErrKeyFileExists  = errors.New("key file already exists")
	ErrMissingKeyFile = errors.New("key file not found")
)

// PubExt is appended to a key path for the public companion file.
const PubExt = ".pub"

// Pub is the public half of a user address.
type Pub struct {
	Addr  *big.Int
	PkOwn *big.Int
	PkEnc *big.Int
}

// List returns the statement order (addr, pk_own, pk_enc).
func (p Pub) List() []*big.Int {
	return []*big.Int{p.Addr, p.PkOwn, p.PkEnc}
}

// KeyPair is a user secret with its derived public half.
type KeyPair struct {
	USK *big.Int
	Pub Pub
}

// FromSecret derives the public half of usk.
func FromSecret(p *params.Params, usk *big.Int) *KeyPair {
	pkOwn := p.H(usk)
	pkEnc := p.Curve.BasePointMult(usk)
	return &KeyPair{
		USK: new(big.Int).Set(usk),
		Pub: Pub{
			Addr:  p.H(pkOwn, pkEnc),
			PkOwn: pkOwn,
			PkEnc: pkEnc,
		},
	}
}

// Generate draws a fresh user key.
func Generate(p *params.Params) (*KeyPair, error) {
	usk, err := p.Random()
	if err != nil {
		return nil, errors.Wrap(err, "generate usk")
	}
	return FromSecret(p, usk), nil
}

// AuditPub is the auditor's public key.
type AuditPub struct {
	APK *big.Int
}

// AuditKeyPair is the auditor's secret with its public key.
type AuditKeyPair struct {
	ASK *big.Int
	Pub AuditPub
}

// AuditFromSecret derives apk from ask.
func AuditFromSecret(p *params.Params, ask *big.Int) *AuditKeyPair {
	return &AuditKeyPair{
		ASK: new(big.Int).Set(ask),
		Pub: AuditPub{APK: p.Curve.BasePointMult(ask)},
	}
}

// GenerateAudit draws a fresh auditor key.
func GenerateAudit(p *params.Params) (*AuditKeyPair, error) {
	ask, err := p.Random()
	if err != nil {
		return nil, errors.Wrap(err, "generate ask")
	}
	return AuditFromSecret(p, ask), nil
}

// JSON shapes

type pubJSON struct {
	Addr  string `json:"addr"`
	PkOwn string `json:"pk_own"`
	PkEnc string `json:"pk_enc"`
}

type keyPairJSON struct {
	USK string  `json:"usk"`
	Pub pubJSON `json:"pub"`
}

type auditPubJSON struct {
	APK string `json:"apk"`
}

type auditKeyPairJSON struct {
	ASK string       `json:"ask"`
	Pub auditPubJSON `json:"pub"`
}

func (p Pub) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toJSON())
}

func (p Pub) toJSON() pubJSON {
	return pubJSON{Addr: field.Hex(p.Addr), PkOwn: field.Hex(p.PkOwn), PkEnc: field.Hex(p.PkEnc)}
}

func (p *Pub) UnmarshalJSON(data []byte) error {
	var raw pubJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return p.fromJSON(raw)
}

func (p *Pub) fromJSON(raw pubJSON) error {
	var err error
	if p.Addr, err = field.ParseHex(raw.Addr); err != nil {
		return errors.Wrap(err, "addr")
	}
	if p.PkOwn, err = field.ParseHex(raw.PkOwn); err != nil {
		return errors.Wrap(err, "pk_own")
	}
	if p.PkEnc, err = field.ParseHex(raw.PkEnc); err != nil {
		return errors.Wrap(err, "pk_enc")
	}
	return nil
}

func (k KeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyPairJSON{USK: field.Hex(k.USK), Pub: k.Pub.toJSON()})
}

func (k *KeyPair) UnmarshalJSON(data []byte) error {
	var raw keyPairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	usk, err := field.ParseHex(raw.USK)
	if err != nil {
		return errors.Wrap(err, "usk")
	}
	k.USK = usk
	return k.Pub.fromJSON(raw.Pub)
}

func (a AuditPub) MarshalJSON() ([]byte, error) {
	return json.Marshal(auditPubJSON{APK: field.Hex(a.APK)})
}

func (a *AuditPub) UnmarshalJSON(data []byte) error {
	var raw auditPubJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	apk, err := field.ParseHex(raw.APK)
	if err != nil {
		return errors.Wrap(err, "apk")
	}
	a.APK = apk
	return nil
}

func (a AuditKeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(auditKeyPairJSON{ASK: field.Hex(a.ASK), Pub: auditPubJSON{APK: field.Hex(a.Pub.APK)}})
}

func (a *AuditKeyPair) UnmarshalJSON(data []byte) error {
	var raw auditKeyPairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ask, err := field.ParseHex(raw.ASK)
	if err != nil {
		return errors.Wrap(err, "ask")
	}
	apk, err := field.ParseHex(raw.Pub.APK)
	if err != nil {
		return errors.Wrap(err, "apk")
	}
	a.ASK, a.Pub.APK = ask, apk
	return nil
}
