package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	d, err := NewDeriver("server-secret")
	require.NoError(t, err)

	a, err := d.Derive("76561197960287930")
	require.NoError(t, err)
	b, err := d.Derive("76561197960287930")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestDeriveDistinctInputsDistinctOutputs(t *testing.T) {
	d, err := NewDeriver("server-secret")
	require.NoError(t, err)

	a, err := d.Derive("76561197960287930")
	require.NoError(t, err)
	b, err := d.Derive("76561197960287931")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDeriveDependsOnServerKey(t *testing.T) {
	d1, err := NewDeriver("secret-one")
	require.NoError(t, err)
	d2, err := NewDeriver("secret-two")
	require.NoError(t, err)

	a, err := d1.Derive("76561197960287930")
	require.NoError(t, err)
	b, err := d2.Derive("76561197960287930")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDeriveRejectsEmptyInputs(t *testing.T) {
	_, err := NewDeriver("")
	require.Error(t, err)

	d, err := NewDeriver("server-secret")
	require.NoError(t, err)

	_, err = d.Derive("")
	require.Error(t, err)
}

func TestDerivedSecretIsValidDirectoryPassword(t *testing.T) {
	d, err := NewDeriver("server-secret")
	require.NoError(t, err)

	secret, err := d.Derive("76561197960287930")
	require.NoError(t, err)

	// must survive a hash/verify round trip with the directory hasher
	hash, version, err := HashPassword(secret)
	require.NoError(t, err)
	assert.Equal(t, HashVersionBcrypt, version)
	assert.NoError(t, VerifyPassword(hash, secret))
}
