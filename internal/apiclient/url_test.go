package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubeobserve/kubeobserve/internal/model"
)

func podSelector(t *testing.T) model.ObjectSelector {
	t.Helper()
	res := model.ApiResource{Group: model.CoreV1, Kind: "Pod", Plural: "pods", Namespaced: true}
	sel, err := model.NewObjectSelector(res, "default")
	assert.NoError(t, err)
	return sel
}

func TestBuildURLNamespacedList(t *testing.T) {
	sel := podSelector(t)
	got := buildURL("https://cluster.example", sel, false, 0, 0)
	assert.Equal(t, "https://cluster.example/api/v1/namespaces/default/pods", got)
}

func TestBuildURLClusterScoped(t *testing.T) {
	res := model.ApiResource{Group: model.CoreV1, Kind: "Node", Plural: "nodes", Namespaced: false}
	sel, err := model.NewObjectSelector(res, "")
	assert.NoError(t, err)

	got := buildURL("https://cluster.example", sel, false, 0, 0)
	assert.Equal(t, "https://cluster.example/api/v1/nodes", got)
}

func TestBuildURLWatchIncludesResourceVersion(t *testing.T) {
	sel := podSelector(t)
	got := buildURL("https://cluster.example", sel, true, 42, 0)
	assert.Equal(t, "https://cluster.example/api/v1/namespaces/default/pods?resourceVersion=42&watch=1", got)
}

func TestBuildURLOmitsZeroTimeoutSeconds(t *testing.T) {
	sel := podSelector(t)
	got := buildURL("https://cluster.example", sel, true, 1, 0)
	assert.NotContains(t, got, "timeoutSeconds")
}

func TestBuildURLIncludesTimeoutSecondsWhenSet(t *testing.T) {
	sel := podSelector(t)
	got := buildURL("https://cluster.example", sel, true, 1, 30)
	assert.Contains(t, got, "timeoutSeconds=30")
}

func TestBuildURLIsDeterministic(t *testing.T) {
	sel := podSelector(t)
	a := buildURL("https://cluster.example", sel, true, 7, 30)
	b := buildURL("https://cluster.example", sel, true, 7, 30)
	assert.Equal(t, a, b)
}

func TestBuildPodLogURL(t *testing.T) {
	sel := podSelector(t).ForPodLogs("my-pod", "my-container")
	got := buildPodLogURL("https://cluster.example", sel, 100, 60, true)
	assert.Equal(t,
		"https://cluster.example/api/v1/namespaces/default/pods/my-pod/log?container=my-container&follow=1&previous=1&sinceSeconds=60&tailLines=100",
		got)
}

func TestBuildPodLogURLOmitsUnsetOptionals(t *testing.T) {
	sel := podSelector(t).ForPodLogs("my-pod", "my-container")
	got := buildPodLogURL("https://cluster.example", sel, 0, 0, false)
	assert.Equal(t, "https://cluster.example/api/v1/namespaces/default/pods/my-pod/log?container=my-container&follow=1", got)
}
