package approvals

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/deposit-ledger/pkg/config"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/security"
)

func newVerifier(t *testing.T, buf *bytes.Buffer) Verifier {
	t.Helper()
	hash, err := security.HashCode("731904", config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	require.NoError(t, err)
	v, err := NewCodeVerifier(map[string]string{
		"broken": "not-a-hash",
		"ops":    hash,
	}, logger.New(logger.Options{ServiceName: "test", Output: buf}))
	require.NoError(t, err)
	return v
}

func TestVerifyAcceptsConfiguredCode(t *testing.T) {
	var buf bytes.Buffer
	v := newVerifier(t, &buf)

	name, err := v.Verify(context.Background(), " 731904 ", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ops", name)
}

func TestVerifyDeniesAndLogsSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	v := newVerifier(t, &buf)

	_, err := v.Verify(context.Background(), "111111", "user-9")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Contains(t, buf.String(), "approval.denied")
	assert.Contains(t, buf.String(), "user-9")

	_, err = v.Verify(context.Background(), "", "user-9")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestVerifyWithNoCodesAlwaysDenies(t *testing.T) {
	v, err := NewCodeVerifier(nil, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "123456", "user-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
