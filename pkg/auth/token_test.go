package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/deposit-ledger/pkg/config"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "deposit-ledger",
		ExpirationMinutes: minutes,
	}
}

func TestMintAndParseStaffToken(t *testing.T) {
	cfg := testJWTConfig(30)
	now := time.Now().UTC()

	token, err := MintStaffToken(cfg, now, StaffTokenPayload{
		UserID: "rep-42",
		Name:   "Dana",
		Role:   enums.StaffRoleSales,
	})
	if err != nil {
		t.Fatalf("mint staff token: %v", err)
	}

	claims, err := ParseStaffToken(cfg, token)
	if err != nil {
		t.Fatalf("parse staff token: %v", err)
	}
	if claims.UserID != "rep-42" || claims.Subject != "rep-42" {
		t.Fatalf("unexpected user id %q / subject %q", claims.UserID, claims.Subject)
	}
	if claims.Role != enums.StaffRoleSales {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestParseStaffTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig(10)
	token, err := MintStaffToken(cfg, time.Now(), StaffTokenPayload{UserID: "u1", Role: enums.StaffRoleManager})
	if err != nil {
		t.Fatalf("mint staff token: %v", err)
	}
	if _, err := ParseStaffToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseStaffTokenExpired(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintStaffToken(cfg, time.Now().Add(-time.Hour), StaffTokenPayload{UserID: "u1", Role: enums.StaffRoleAdmin})
	if err != nil {
		t.Fatalf("mint staff token: %v", err)
	}
	_, err = ParseStaffToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiration error, got %v", err)
	}
}

func TestParseStaffTokenWrongIssuer(t *testing.T) {
	token, err := MintStaffToken(testJWTConfig(5), time.Now(), StaffTokenPayload{UserID: "u1", Role: enums.StaffRoleSales})
	if err != nil {
		t.Fatalf("mint staff token: %v", err)
	}
	other := testJWTConfig(5)
	other.Issuer = "someone-else"
	if _, err := ParseStaffToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch")
	}
}

func TestParseStaffTokenRejectsUnknownRole(t *testing.T) {
	cfg := testJWTConfig(5)
	claims := StaffClaims{
		UserID: "u1",
		Role:   "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseStaffToken(cfg, token); err == nil {
		t.Fatal("expected role rejection")
	}
}

func TestMintStaffTokenValidation(t *testing.T) {
	cfg := testJWTConfig(5)
	if _, err := MintStaffToken(cfg, time.Now(), StaffTokenPayload{UserID: "u1"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintStaffToken(cfg, time.Now(), StaffTokenPayload{Role: enums.StaffRoleSales}); err == nil {
		t.Fatal("expected missing user error")
	}
	if _, err := MintStaffToken(testJWTConfig(0), time.Now(), StaffTokenPayload{UserID: "u1", Role: enums.StaffRoleSales}); err == nil {
		t.Fatal("expected ttl error")
	}
}
