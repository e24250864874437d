package auth

import (
	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	MemberID uuid.UUID
	CaveID   *uuid.UUID
	Role     enums.MemberRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients. CaveID is
// only present for cave owners.
type AccessTokenClaims struct {
	MemberID uuid.UUID        `json:"member_id"`
	CaveID   *uuid.UUID       `json:"cave_id,omitempty"`
	Role     enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}
