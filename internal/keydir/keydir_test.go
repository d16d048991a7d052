package keydir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/stretchr/testify/require"
)

func appendRaw(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(line)
	require.NoError(t, err)
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "keys.txt"))
	require.NoError(t, err)
	require.Equal(t, 0, d.Len())
}

func TestAppendAndLookup(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "keys.txt"))
	require.NoError(t, err)

	priv, pub, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, d.Append(priv, pub))

	got, ok := d.Lookup(pub)
	require.True(t, ok)
	require.Equal(t, priv, got)
	require.Equal(t, 1, d.Len())
}

func TestLookup_UnknownKeyNotFound(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "keys.txt"))
	require.NoError(t, err)

	_, pub, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, found := d.Lookup(pub)
	require.False(t, found)
}

func TestAppend_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")

	d1, err := Load(path)
	require.NoError(t, err)

	priv1, pub1, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, d1.Append(priv1, pub1))

	priv2, pub2, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, d1.Append(priv2, pub2))

	d2, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, d2.Len())

	got1, ok := d2.Lookup(pub1)
	require.True(t, ok)
	require.Equal(t, priv1, got1)

	got2, ok := d2.Lookup(pub2)
	require.True(t, ok)
	require.Equal(t, priv2, got2)
}

func TestLoad_RejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	d, err := Load(path)
	require.NoError(t, err)

	priv, pub, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, d.Append(priv, pub))

	appendRaw(t, path, "not-a-valid-line\n")

	_, err = Load(path)
	require.Error(t, err)
}

func TestGenerateMnemonic_ProducesValidMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)
	require.NotEmpty(t, m)

	_, _, err = DeriveKey(m, 0)
	require.NoError(t, err)
}

func TestDeriveKey_RejectsInvalidMnemonic(t *testing.T) {
	_, _, err := DeriveKey("not a real mnemonic at all", 0)
	require.Error(t, err)
}

func TestDeriveKey_IsDeterministic(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)

	priv1, pub1, err := DeriveKey(m, 0)
	require.NoError(t, err)
	priv2, pub2, err := DeriveKey(m, 0)
	require.NoError(t, err)

	require.Equal(t, priv1, priv2)
	require.Equal(t, pub1, pub2)
}

func TestDeriveKey_DistinctAccountsYieldDistinctKeys(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)

	_, pub0, err := DeriveKey(m, 0)
	require.NoError(t, err)
	_, pub1, err := DeriveKey(m, 1)
	require.NoError(t, err)

	require.NotEqual(t, pub0, pub1)
}

func TestDeriveKey_DistinctMnemonicsYieldDistinctKeys(t *testing.T) {
	m1, err := GenerateMnemonic()
	require.NoError(t, err)
	m2, err := GenerateMnemonic()
	require.NoError(t, err)

	_, pub1, err := DeriveKey(m1, 0)
	require.NoError(t, err)
	_, pub2, err := DeriveKey(m2, 0)
	require.NoError(t, err)

	require.NotEqual(t, pub1, pub2)
}

func TestNewAddress_AppendsToDirectoryAndIsRecoverable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	d, err := Load(path)
	require.NoError(t, err)

	mnemonic, pub, err := NewAddress(d)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())

	priv, ok := d.Lookup(pub)
	require.True(t, ok)

	wantPriv, wantPub, err := DeriveKey(mnemonic, 0)
	require.NoError(t, err)
	require.Equal(t, wantPriv, priv)
	require.Equal(t, wantPub, pub)
}
