package auth

import (
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// StaffTokenPayload captures the data available when minting a staff JWT.
type StaffTokenPayload struct {
	UserID string
	Name   string
	Role   enums.StaffRole
	JTI    string
}

// StaffClaims represents the typed JWT presented by sales staff.
type StaffClaims struct {
	UserID string          `json:"user_id"`
	Name   string          `json:"name,omitempty"`
	Role   enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}
