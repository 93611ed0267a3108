package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-engine/internal/auth"
	"github.com/spec-kit/complaint-engine/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret")

	token, err := tm.GenerateToken("tech-1", domain.StaffRoleTechnician, time.Hour)
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", claims.StaffID)
	assert.Equal(t, domain.StaffRoleTechnician, claims.Role)
}

func TestParseToken_RejectsExpired(t *testing.T) {
	tm := auth.NewTokenManager("test-secret")

	token, err := tm.GenerateToken("tech-1", domain.StaffRoleTechnician, -time.Minute)
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_RejectsWrongSecret(t *testing.T) {
	issuer := auth.NewTokenManager("secret-a")
	verifier := auth.NewTokenManager("secret-b")

	token, err := issuer.GenerateToken("tech-1", domain.StaffRoleManager, time.Hour)
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}
