package model

// ApiGroup is a named, versioned API group and its endpoint prefix, e.g.
// core ("core", "v1", "/api/v1") or apps ("apps", "v1", "/apis/apps/v1").
type ApiGroup struct {
	Name     string
	Version  string
	Endpoint string
}

// CoreV1 is the core group every cluster exposes at /api/v1, named "core"
// here; /apis discovery does not list it.
var CoreV1 = ApiGroup{Name: "core", Version: "v1", Endpoint: "/api/v1"}

// ApiResource identifies one listable/watchable kind within a group.
type ApiResource struct {
	Group      ApiGroup
	Kind       string
	Plural     string
	Namespaced bool
	Verbs      []string
}

// SupportsVerb reports whether the resource's discovery document listed verb.
func (r ApiResource) SupportsVerb(verb string) bool {
	for _, v := range r.Verbs {
		if v == verb {
			return true
		}
	}
	return false
}
