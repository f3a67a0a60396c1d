package main

import (
	"context"

	"k8s.io/cli-runtime/pkg/genericclioptions"

	"github.com/kubeobserve/kubeobserve/internal/engine"
	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/facade"
	"github.com/kubeobserve/kubeobserve/internal/kubeconfig"
)

// openFacade resolves the kubeconfig context named by --context (or the
// current-context if unset), loads the process-wide engineconfig.Env, starts
// an Engine on a background goroutine, and returns a Facade plus a shutdown
// func the caller must defer.
func openFacade(ctx context.Context, kubeFlags *genericclioptions.ConfigFlags, enableConnectivity bool) (*facade.Facade, func() error, error) {
	contextName := ""
	if kubeFlags.Context != nil {
		contextName = *kubeFlags.Context
	}

	clusterCtx, err := kubeconfig.Load(kubeFlags, contextName)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := engineconfig.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(ctx, cfg)
	eng.LaunchInBackgroundThread(ctx)

	f := facade.New(eng, clusterCtx, enableConnectivity, cfg)
	return f, eng.Shutdown, nil
}
