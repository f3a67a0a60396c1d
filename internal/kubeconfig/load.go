// Package kubeconfig translates a standard kubeconfig file plus kubectl-style
// command-line overrides into the engine's model.Context.
package kubeconfig

import (
	"fmt"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/kubeobserve/kubeobserve/internal/model"
)

// Load resolves contextName (empty means the --context flag, or the
// kubeconfig's current-context when that is unset too) using the standard
// loading rules honoring KUBECONFIG and --kubeconfig, and returns the
// model.Context engine components need to talk to it.
func Load(flags *genericclioptions.ConfigFlags, contextName string) (model.Context, error) {
	loader := flags.ToRawKubeConfigLoader()

	raw, err := loader.RawConfig()
	if err != nil {
		return model.Context{}, fmt.Errorf("loading kubeconfig: %w", err)
	}
	if len(raw.Contexts) == 0 {
		return model.Context{}, fmt.Errorf("kubeconfig has no context definitions")
	}

	if contextName == "" && flags.Context != nil {
		contextName = *flags.Context
	}
	if contextName == "" {
		contextName = raw.CurrentContext
	}
	kubeCtx, ok := raw.Contexts[contextName]
	if !ok {
		return model.Context{}, fmt.Errorf("context %q does not exist in the kubeconfig", contextName)
	}

	cluster, ok := raw.Clusters[kubeCtx.Cluster]
	if !ok {
		return model.Context{}, fmt.Errorf("cluster %q referenced by context %q is not defined", kubeCtx.Cluster, contextName)
	}

	authInfo, ok := raw.AuthInfos[kubeCtx.AuthInfo]
	if !ok {
		return model.Context{}, fmt.Errorf("user %q referenced by context %q is not defined", kubeCtx.AuthInfo, contextName)
	}

	namespace := kubeCtx.Namespace
	if namespace == "" {
		namespace = "default"
	}

	return model.Context{
		ShortName:        contextName,
		Server:           cluster.Server,
		DefaultNamespace: namespace,
		Trust:            trustFromCluster(cluster),
		Credential:       credentialFromAuthInfo(authInfo),
	}, nil
}

func trustFromCluster(cluster *clientcmdapi.Cluster) model.Trust {
	return model.Trust{
		CACertPath: cluster.CertificateAuthority,
		CACertData: cluster.CertificateAuthorityData,
	}
}

func credentialFromAuthInfo(authInfo *clientcmdapi.AuthInfo) model.Credential {
	cred := model.Credential{
		Username:       authInfo.Username,
		Password:       authInfo.Password,
		Token:          authInfo.Token,
		ClientCertPath: authInfo.ClientCertificate,
		ClientKeyPath:  authInfo.ClientKey,
		ClientCertData: authInfo.ClientCertificateData,
		ClientKeyData:  authInfo.ClientKeyData,
	}
	if authInfo.Exec != nil {
		env := make(map[string]string, len(authInfo.Exec.Env))
		for _, kv := range authInfo.Exec.Env {
			env[kv.Name] = kv.Value
		}
		cred.Exec = &model.ExecConfig{
			Command: authInfo.Exec.Command,
			Args:    authInfo.Exec.Args,
			Env:     env,
		}
	}
	return cred
}
