package apiclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kubeobserve/kubeobserve/internal/model"
)

// buildURL constructs the list/watch URL for selector, per spec.md §4.3.
// Query parameters are only added when set, and emitted in a canonical
// (alphabetical) order so that identical inputs always produce byte-identical
// URLs.
func buildURL(server string, selector model.ObjectSelector, watch bool, resourceVersion uint64, timeoutSeconds int) string {
	group := selector.Resource.Group
	base := fmt.Sprintf("%s%s/%s", server, group.Endpoint, selector.Resource.Plural)
	if selector.Namespace != "" {
		base = fmt.Sprintf("%s%s/namespaces/%s/%s", server, group.Endpoint, selector.Namespace, selector.Resource.Plural)
	}

	q := url.Values{}
	if watch {
		q.Set("resourceVersion", strconv.FormatUint(resourceVersion, 10))
		q.Set("watch", "1")
	}
	if timeoutSeconds > 0 {
		q.Set("timeoutSeconds", strconv.Itoa(timeoutSeconds))
	}
	return appendQuery(base, q)
}

// buildPodLogURL constructs the pod-log URL per spec.md §4.3.
func buildPodLogURL(server string, selector model.ObjectSelector, tailLines int, sinceSeconds int, previous bool) string {
	group := selector.Resource.Group
	base := fmt.Sprintf("%s%s/namespaces/%s/pods/%s/log", server, group.Endpoint, selector.Namespace, selector.Pod)

	q := url.Values{}
	q.Set("container", selector.Container)
	q.Set("follow", "1")
	if tailLines > 0 {
		q.Set("tailLines", strconv.Itoa(tailLines))
	}
	if sinceSeconds > 0 {
		q.Set("sinceSeconds", strconv.Itoa(sinceSeconds))
	}
	if previous {
		q.Set("previous", "1")
	}
	return appendQuery(base, q)
}

// appendQuery renders q in canonical (sorted-by-key, via url.Values.Encode)
// order and appends it to base if non-empty.
func appendQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	encoded := q.Encode()
	if strings.Contains(base, "?") {
		return base + "&" + encoded
	}
	return base + "?" + encoded
}
