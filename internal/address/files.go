// files.go - Key file persistence.

package address

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteKeyPair stores kp at path and its public half at path+".pub".
// Existing files are never overwritten.
func WriteKeyPair(path string, kp *KeyPair) error {
	if err := writeNew(path, kp); err != nil {
		return err
	}
	return writeNew(path+PubExt, kp.Pub)
}

// LoadKeyPair reads a user key written by WriteKeyPair.
func LoadKeyPair(path string) (*KeyPair, error) {
	var kp KeyPair
	if err := readJSON(path, &kp); err != nil {
		return nil, err
	}
	return &kp, nil
}

// LoadPub reads a public address file.
func LoadPub(path string) (*Pub, error) {
	var pub Pub
	if err := readJSON(path, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

// WriteAuditKeyPair stores an auditor key and its ".pub" companion.
func WriteAuditKeyPair(path string, kp *AuditKeyPair) error {
	if err := writeNew(path, kp); err != nil {
		return err
	}
	return writeNew(path+PubExt, kp.Pub)
}

func LoadAuditKeyPair(path string) (*AuditKeyPair, error) {
	var kp AuditKeyPair
	if err := readJSON(path, &kp); err != nil {
		return nil, err
	}
	return &kp, nil
}

func LoadAuditPub(path string) (*AuditPub, error) {
	var pub AuditPub
	if err := readJSON(path, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

func writeNew(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "create key directory")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if os.IsExist(err) {
		return errors.Wrap(ErrKeyFileExists, path)
	}
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return errors.Wrap(ErrMissingKeyFile, path)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
