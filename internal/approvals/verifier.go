// Package approvals checks manager approval codes for privileged ledger actions.
package approvals

import (
	"context"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/security"
)

// Verifier validates an approval code for the acting user. It returns the name
// of the code holder on success and a FORBIDDEN error otherwise.
type Verifier interface {
	Verify(ctx context.Context, code, actorID string) (string, error)
}

type codeVerifier struct {
	names  []string
	hashes map[string]string
	logg   *logger.Logger
}

// NewCodeVerifier builds a verifier over name -> argon2id hash pairs.
func NewCodeVerifier(hashes map[string]string, logg *logger.Logger) (Verifier, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "approvals logger required")
	}
	names := make([]string, 0, len(hashes))
	copied := make(map[string]string, len(hashes))
	for name, hash := range hashes {
		names = append(names, name)
		copied[name] = hash
	}
	sort.Strings(names)
	return &codeVerifier{names: names, hashes: copied, logg: logg}, nil
}

func (v *codeVerifier) Verify(ctx context.Context, code, actorID string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", v.deny(ctx, actorID, "missing")
	}
	for _, name := range v.names {
		ok, err := security.VerifyCode(code, v.hashes[name])
		if err != nil {
			v.logg.Warn(v.logg.WithField(ctx, "approver", name), "approval.hash_invalid")
			continue
		}
		if ok {
			v.logg.Info(v.logg.WithFields(ctx, map[string]any{"approver": name, "actor_id": actorID}), "approval.granted")
			return name, nil
		}
	}
	return "", v.deny(ctx, actorID, "mismatch")
}

func (v *codeVerifier) deny(ctx context.Context, actorID, reason string) error {
	logCtx := v.logg.WithFields(ctx, map[string]any{
		"actor_id": actorID,
		"reason":   reason,
		"security": true,
	})
	v.logg.Warn(logCtx, "approval.denied")
	return pkgerrors.New(pkgerrors.CodeForbidden, "invalid approval code")
}
