package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("secret", time.Hour)
	id := uuid.New()

	token, err := m.Generate(id, "kasir@toko.id", "Kasir", "CASHIER", []string{"order:create"}, "v1")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "CASHIER", claims.RoleCode)
	assert.Equal(t, []string{"order:create"}, claims.Privileges)
	assert.Equal(t, "v1", claims.TokenVersion)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("one", time.Hour).Generate(uuid.New(), "a@b.c", "A", "ADMIN", nil, "v")
	require.NoError(t, err)

	_, err = NewManager("two", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := m.Generate(uuid.New(), "a@b.c", "A", "ADMIN", nil, "v")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateEmpty(t *testing.T) {
	_, err := NewManager("secret", time.Hour).Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)
}
