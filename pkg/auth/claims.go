package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the coarse permission carried by operator and service tokens.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleSystem
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID uuid.UUID
	Role    Role
	JTI     string
}

// AccessTokenClaims is the typed JWT accepted by the payouts API.
type AccessTokenClaims struct {
	ActorID uuid.UUID `json:"actor_id"`
	Role    Role      `json:"role"`
	jwt.RegisteredClaims
}
