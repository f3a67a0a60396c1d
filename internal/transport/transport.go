// Package transport builds the per-cluster HTTP client the ApiClient drives
// directly; TLS materialisation is delegated to client-go's transport
// package rather than hand-rolled PEM parsing (see SPEC_FULL.md §6).
package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	k8stransport "k8s.io/client-go/transport"

	"github.com/kubeobserve/kubeobserve/internal/model"
)

// ConnectTimeout is the spec.md §4.3 default: "connect = 3s". Callers load
// the effective value from internal/engineconfig.Env, which defaults to
// this same duration but allows operators to override it.
const ConnectTimeout = 3 * time.Second

// New builds an *http.Client for ctx's cluster: system/CA trust plus an
// optional client certificate, with HTTP/2 enabled since API servers speak
// it for watch streams. connectTimeout bounds TCP connect + TLS handshake.
func New(ctx model.Context, connectTimeout time.Duration) (*http.Client, error) {
	cfg := &k8stransport.Config{
		TLS: k8stransport.TLSConfig{
			CAFile: ctx.Trust.CACertPath,
			CAData: ctx.Trust.CACertData,
		},
	}
	if ctx.Credential.ClientCertPath != "" || ctx.Credential.ClientKeyPath != "" {
		cfg.TLS.CertFile = ctx.Credential.ClientCertPath
		cfg.TLS.KeyFile = ctx.Credential.ClientKeyPath
	}
	if len(ctx.Credential.ClientCertData) > 0 || len(ctx.Credential.ClientKeyData) > 0 {
		cfg.TLS.CertData = ctx.Credential.ClientCertData
		cfg.TLS.KeyData = ctx.Credential.ClientKeyData
	}

	tlsConfig, err := k8stransport.TLSConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	rt := &http.Transport{
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: connectTimeout,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
	if err := http2.ConfigureTransport(rt); err != nil {
		return nil, err
	}

	return &http.Client{Transport: rt}, nil
}
