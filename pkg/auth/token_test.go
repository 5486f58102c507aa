package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = config.JWTConfig{Secret: "s3cret", Issuer: "packfinderz"}

func TestMintAndParseRoundTrip(t *testing.T) {
	actor := uuid.New()
	token, err := MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{ActorID: actor, Role: RoleAdmin})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.ActorID)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	actor := uuid.New()
	expired, err := MintAccessToken(testCfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{ActorID: actor, Role: RoleSystem})
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, expired)
	require.Error(t, err)

	other := config.JWTConfig{Secret: "other", Issuer: "packfinderz"}
	foreign, err := MintAccessToken(other, time.Now(), time.Hour, AccessTokenPayload{ActorID: actor, Role: RoleAdmin})
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, foreign)
	require.Error(t, err)

	wrongIssuer := config.JWTConfig{Secret: "s3cret", Issuer: "someone-else"}
	token, err := MintAccessToken(wrongIssuer, time.Now(), time.Hour, AccessTokenPayload{ActorID: actor, Role: RoleAdmin})
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, token)
	require.Error(t, err)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	claims := AccessTokenClaims{
		ActorID: uuid.New(),
		Role:    Role("vendor"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testCfg.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, signed)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseToleratesSmallClockSkew(t *testing.T) {
	actor := uuid.New()
	justExpired, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour-10*time.Second), time.Hour, AccessTokenPayload{ActorID: actor, Role: RoleAdmin})
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, justExpired)
	require.NoError(t, err)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	claims := AccessTokenClaims{
		ActorID: uuid.New(),
		Role:    RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testCfg.Secret))
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, signed)
	require.Error(t, err)

	_, err = ParseAccessToken(config.JWTConfig{}, signed)
	require.ErrorIs(t, err, ErrSecretMissing)
}

func TestMintValidatesInput(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{Issuer: "x"}, time.Now(), time.Hour, AccessTokenPayload{ActorID: uuid.New(), Role: RoleAdmin})
	require.Error(t, err)
	_, err = MintAccessToken(testCfg, time.Now(), 0, AccessTokenPayload{ActorID: uuid.New(), Role: RoleAdmin})
	require.Error(t, err)
	_, err = MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{Role: RoleAdmin})
	require.ErrorIs(t, err, ErrActorMissing)
	_, err = MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{ActorID: uuid.New(), Role: "buyer"})
	require.Error(t, err)
}
