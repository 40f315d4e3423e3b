package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/identity"
)

func signTest(t *testing.T, ks *identity.InMemoryKeySet) string {
	t.Helper()
	token, err := ks.Sign(context.Background(), jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

func TestKeySet_SignAndVerify(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	token := signTest(t, ks)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, ks.KeyFunc())
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestKeySet_RotationKeepsOldKeysVerifiable(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	old := signTest(t, ks)
	oldKID := ks.CurrentKID()
	require.NoError(t, ks.Rotate())
	assert.NotEqual(t, oldKID, ks.CurrentKID())

	_, err = jwt.Parse(old, ks.KeyFunc())
	assert.NoError(t, err)
}

func TestKeySet_EvictsOldestKey(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	first := signTest(t, ks)
	for i := 0; i < 10; i++ {
		require.NoError(t, ks.Rotate())
	}

	_, err = jwt.Parse(first, ks.KeyFunc())
	assert.Error(t, err)
}

func TestKeySet_RejectsForeignKey(t *testing.T) {
	ks1, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)
	ks2, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	// Both sets start at key-1, so the kid resolves but the signature must not.
	token := signTest(t, ks1)
	_, err = jwt.Parse(token, ks2.KeyFunc())
	assert.Error(t, err)
}

func TestSeededKeySet_SharedSeedVerifies(t *testing.T) {
	a, err := identity.NewSeededKeySet("dev-seed")
	require.NoError(t, err)
	b, err := identity.NewSeededKeySet("dev-seed")
	require.NoError(t, err)
	other, err := identity.NewSeededKeySet("other-seed")
	require.NoError(t, err)

	token := signTest(t, a)
	_, err = jwt.Parse(token, b.KeyFunc())
	assert.NoError(t, err)
	_, err = jwt.Parse(token, other.KeyFunc())
	assert.Error(t, err)

	_, err = identity.NewSeededKeySet("")
	assert.Error(t, err)
}
