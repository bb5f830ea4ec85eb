package address

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"zklay/internal/params"
)

func TestDerivation(t *testing.T) {
	p := params.Default()
	kp, err := Generate(p)
	require.NoError(t, err)

	require.Zero(t, p.H(kp.USK).Cmp(kp.Pub.PkOwn))
	require.Zero(t, p.Curve.BasePointMult(kp.USK).Cmp(kp.Pub.PkEnc))
	require.Zero(t, p.H(kp.Pub.PkOwn, kp.Pub.PkEnc).Cmp(kp.Pub.Addr))

	again := FromSecret(p, kp.USK)
	require.Equal(t, kp.Pub.List(), again.Pub.List())
}

func TestKeyFiles(t *testing.T) {
	p := params.Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "keys", "addr.json")

	_, err := LoadKeyPair(path)
	require.True(t, errors.Is(err, ErrMissingKeyFile))

	kp, err := Generate(p)
	require.NoError(t, err)
	require.NoError(t, WriteKeyPair(path, kp))

	err = WriteKeyPair(path, kp)
	require.True(t, errors.Is(err, ErrKeyFileExists))

	loaded, err := LoadKeyPair(path)
	require.NoError(t, err)
	require.Zero(t, kp.USK.Cmp(loaded.USK))
	require.Equal(t, kp.Pub.List(), loaded.Pub.List())

	pub, err := LoadPub(path + PubExt)
	require.NoError(t, err)
	require.Zero(t, kp.Pub.Addr.Cmp(pub.Addr))
}

func TestAuditKeyFiles(t *testing.T) {
	p := params.Default()
	path := filepath.Join(t.TempDir(), "audit.json")

	kp, err := GenerateAudit(p)
	require.NoError(t, err)
	require.Zero(t, p.Curve.BasePointMult(kp.ASK).Cmp(kp.Pub.APK))
	require.NoError(t, WriteAuditKeyPair(path, kp))

	loaded, err := LoadAuditKeyPair(path)
	require.NoError(t, err)
	require.Zero(t, kp.ASK.Cmp(loaded.ASK))
	require.Zero(t, kp.Pub.APK.Cmp(loaded.Pub.APK))

	pub, err := LoadAuditPub(path + PubExt)
	require.NoError(t, err)
	require.Zero(t, kp.Pub.APK.Cmp(pub.APK))
}
