package model

import "fmt"

// ObjectSelector is the tuple that determines what URL an operation targets
// and which watch task owns its channel.
type ObjectSelector struct {
	Resource  ApiResource
	Namespace string
	Pod       string
	Container string
}

// Key returns a value usable as a map key for this selector. ApiResource
// carries a Verbs slice, so ObjectSelector is not itself comparable with ==;
// ClusterLoop's watches map keys on this instead.
func (s ObjectSelector) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s",
		s.Resource.Group.Endpoint, s.Resource.Plural, s.Namespace, s.Pod, s.Container, s.Resource.Kind)
}

// NewObjectSelector validates and builds a selector. A namespace is only
// valid for a namespaced resource.
func NewObjectSelector(res ApiResource, namespace string) (ObjectSelector, error) {
	if namespace != "" && !res.Namespaced {
		return ObjectSelector{}, fmt.Errorf("cannot search by namespace for non-namespaced resource %q", res.Kind)
	}
	return ObjectSelector{Resource: res, Namespace: namespace}, nil
}

// ForPodLogs returns a copy of the selector scoped to one pod/container pair,
// as used by Facade.StartStreamPodLogs.
func (s ObjectSelector) ForPodLogs(pod, container string) ObjectSelector {
	s.Pod = pod
	s.Container = container
	return s
}

// Pretty renders a human-readable selector, e.g. for log correlation.
func (s ObjectSelector) Pretty() string {
	p := s.Resource.Kind
	if s.Namespace != "" {
		p = fmt.Sprintf("%s/%s", s.Namespace, p)
	}
	if s.Pod != "" {
		p = fmt.Sprintf("%s/%s", p, s.Pod)
	}
	if s.Container != "" {
		p = fmt.Sprintf("%s[%s]", p, s.Container)
	}
	return p
}
