// Package auth implements the per-Context credential cache: basic auth,
// bearer tokens sourced from a kubeconfig file entry, or bearer tokens
// refreshed by an exec-credential helper.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"

	"github.com/kubeobserve/kubeobserve/internal/model"
)

// Scheme is the HTTP authentication scheme an AuthContainer carries.
type Scheme int

const (
	// SchemeNone means no Authorization header is sent.
	SchemeNone Scheme = iota
	SchemeBasic
	SchemeBearer
)

// skewMargin is how far ahead of the real expiry a refresh is triggered, to
// absorb clock skew between this process and the API server.
const skewMargin = 5 * time.Minute

// AuthContainer is the resolved credential for the next request.
type AuthContainer struct {
	Scheme   Scheme
	Username string
	Password string
	Token    string
	Expiry   *time.Time // nil means "never expires"
}

func (c AuthContainer) hasExpired(now time.Time) bool {
	if c.Expiry == nil {
		return false
	}
	return !now.Before(c.Expiry.Add(-skewMargin))
}

// execCredentialDoc mirrors client.authentication.k8s.io/v1beta1 ExecCredential.
type execCredentialDoc struct {
	Status struct {
		Token               string `json:"token"`
		ExpirationTimestamp string `json:"expirationTimestamp"`
	} `json:"status"`
}

//go:generate go run github.com/golang/mock/mockgen -package=mock_auth -destination=mocks/exec_resolver_mock.go . ExecCredentialsResolver

// ExecCredentialsResolver runs an exec-credential plugin and parses its
// ExecCredential document into an AuthContainer.
type ExecCredentialsResolver interface {
	Resolve(ctx context.Context, execCfg *model.ExecConfig) (*AuthContainer, error)
}

// dexecCredentialsResolver is the real ExecCredentialsResolver, shelling out
// via dexec.
type dexecCredentialsResolver struct {
	shortName string
}

// Provider produces an AuthContainer for a Context, refreshing it as needed.
type Provider struct {
	ctx          model.Context
	mu           sync.Mutex
	container    *AuthContainer
	execResolver ExecCredentialsResolver
}

// NewProvider builds a Provider for the given cluster Context, resolving
// exec credentials by actually running the configured plugin.
func NewProvider(ctx model.Context) *Provider {
	return NewProviderWithResolver(ctx, &dexecCredentialsResolver{shortName: ctx.ShortName})
}

// NewProviderWithResolver builds a Provider that resolves exec credentials
// via resolver instead of running a real plugin — for tests that want to
// mock the exec boundary (see auth_mock_test.go).
func NewProviderWithResolver(ctx model.Context, resolver ExecCredentialsResolver) *Provider {
	return &Provider{ctx: ctx, execResolver: resolver}
}

// Get returns the current AuthContainer, rebuilding it first if the cache is
// empty or within skewMargin of expiry.
func (p *Provider) Get(ctx context.Context) AuthContainer {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if p.container == nil || p.container.hasExpired(now) {
		p.container = p.create(ctx)
	}
	return *p.container
}

func (p *Provider) create(ctx context.Context) *AuthContainer {
	cred := p.ctx.Credential

	if cred.Username != "" && cred.Password != "" {
		return &AuthContainer{Scheme: SchemeBasic, Username: cred.Username, Password: cred.Password}
	}

	if cred.Token != "" {
		return &AuthContainer{Scheme: SchemeBearer, Token: cred.Token}
	}

	if cred.Exec != nil {
		container, err := p.execResolver.Resolve(ctx, cred.Exec)
		if err != nil {
			dlog.Errorf(ctx, "[%s] failed to obtain exec credentials: %v", p.ctx.ShortName, err)
			return &AuthContainer{Scheme: SchemeNone}
		}
		return container
	}

	return &AuthContainer{Scheme: SchemeNone}
}

// Resolve runs execCfg.Command via dexec and parses its ExecCredential
// document.
func (r *dexecCredentialsResolver) Resolve(ctx context.Context, execCfg *model.ExecConfig) (*AuthContainer, error) {
	cmd := dexec.CommandContext(ctx, execCfg.Command, execCfg.Args...)
	if len(execCfg.Env) > 0 {
		env := append([]string{}, os.Environ()...)
		for k, v := range execCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exec credential helper %q failed: %w", execCfg.Command, err)
	}

	var doc execCredentialDoc
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("exec credential helper %q produced unparseable output: %w", execCfg.Command, err)
	}
	if doc.Status.Token == "" {
		return nil, fmt.Errorf("exec credential helper %q returned no status.token", execCfg.Command)
	}

	expiry, err := time.Parse(time.RFC3339, doc.Status.ExpirationTimestamp)
	if err != nil {
		return nil, fmt.Errorf("exec credential helper %q returned unparseable expirationTimestamp: %w", execCfg.Command, err)
	}

	dlog.Infof(ctx, "[%s] obtained exec credentials valid until %s", r.shortName, expiry)
	return &AuthContainer{Scheme: SchemeBearer, Token: doc.Status.Token, Expiry: &expiry}, nil
}
