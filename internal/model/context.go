package model

// Credential identifies how a Context authenticates its requests.
type Credential struct {
	Username string
	Password string

	// Token is a static bearer token read directly from the kubeconfig
	// user entry, used when no Exec plugin is configured.
	Token string

	ClientCertPath string
	ClientKeyPath  string
	ClientCertData []byte
	ClientKeyData  []byte

	// Exec describes an exec-credential plugin per
	// client.authentication.k8s.io/v1beta1, used when neither a
	// Username/Password pair nor Token is set.
	Exec *ExecConfig
}

// ExecConfig is the subset of a kubeconfig "exec" user entry this engine needs.
type ExecConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Trust identifies the CA material a Context trusts.
type Trust struct {
	CACertPath string
	CACertData []byte
}

// Context identifies one target cluster: immutable for its lifetime, and
// used as the map key for the engine's cluster-loop registry, so it must be
// comparable by value wherever possible.
type Context struct {
	ShortName        string
	Server           string
	Trust            Trust
	Credential       Credential
	DefaultNamespace string
}

// Key returns a value usable as a map key for this Context. Context itself
// holds slices and a pointer (Credential.Exec), so it is not comparable;
// the engine's cluster-loop registry keys on ShortName+Server instead, which
// uniquely identifies a cluster connection for this process's lifetime.
func (c Context) Key() string {
	return c.ShortName + "@" + c.Server
}
