package auth_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeobserve/kubeobserve/internal/auth"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

func TestBasicAuthNeverExpires(t *testing.T) {
	ctx := model.Context{
		Credential: model.Credential{Username: "alice", Password: "hunter2"},
	}
	p := auth.NewProvider(ctx)

	container := p.Get(context.Background())
	assert.Equal(t, auth.SchemeBasic, container.Scheme)
	assert.Equal(t, "alice", container.Username)
	assert.Nil(t, container.Expiry)
}

func TestNoCredentialYieldsNoAuth(t *testing.T) {
	p := auth.NewProvider(model.Context{})
	container := p.Get(context.Background())
	assert.Equal(t, auth.SchemeNone, container.Scheme)
}

// writeExecHelper writes a tiny shell script that emits an ExecCredential
// JSON document expiring at expiry, mirroring the contract a real
// credential plugin follows.
func writeExecHelper(t *testing.T, expiry time.Time) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "helper.sh")
	body := fmt.Sprintf(`#!/bin/sh
cat <<EOF
{"status":{"token":"xxxx","expirationTimestamp":"%s"}}
EOF
`, expiry.UTC().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestExecCredentialRefreshAndCache(t *testing.T) {
	helper := writeExecHelper(t, time.Now().Add(time.Hour))
	ctx := model.Context{
		Credential: model.Credential{
			Exec: &model.ExecConfig{Command: "/bin/sh", Args: []string{helper}},
		},
	}
	p := auth.NewProvider(ctx)

	container := p.Get(context.Background())
	require.Equal(t, auth.SchemeBearer, container.Scheme)
	assert.Equal(t, "xxxx", container.Token)
	require.NotNil(t, container.Expiry)
}

func TestExecCredentialFailureYieldsNoAuth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	ctx := model.Context{
		Credential: model.Credential{
			Exec: &model.ExecConfig{Command: "/bin/sh", Args: []string{path}},
		},
	}
	p := auth.NewProvider(ctx)

	container := p.Get(context.Background())
	assert.Equal(t, auth.SchemeNone, container.Scheme)
}

func TestExpiredContainerTriggersRefresh(t *testing.T) {
	// The helper first returns a token that's already within the skew
	// margin of expiry; Get should rebuild rather than reuse it.
	helper := writeExecHelper(t, time.Now().Add(time.Minute))
	ctx := model.Context{
		Credential: model.Credential{
			Exec: &model.ExecConfig{Command: "/bin/sh", Args: []string{helper}},
		},
	}
	p := auth.NewProvider(ctx)

	first := p.Get(context.Background())
	second := p.Get(context.Background())
	// Both calls refreshed (expiry is within skew margin every time), so
	// both should still be valid bearer containers.
	assert.Equal(t, auth.SchemeBearer, first.Scheme)
	assert.Equal(t, auth.SchemeBearer, second.Scheme)
}
