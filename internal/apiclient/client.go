// Package apiclient issues list, watch, discovery, and pod-log requests
// against a single cluster's HTTP API, and classifies the errors it gets
// back (spec.md §4.3).
package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubeobserve/kubeobserve/internal/auth"
	"github.com/kubeobserve/kubeobserve/internal/channels"
	"github.com/kubeobserve/kubeobserve/internal/cursor"
	"github.com/kubeobserve/kubeobserve/internal/errcat"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

const (
	listTotalTimeout  = 15 * time.Second
	watchTotalTimeout = 300 * time.Second
)

// Client issues requests for a single cluster. One Client is shared by all of
// the cluster's WatchTasks, its connectivity detector and its pod-log
// streams, each calling it from its own goroutine; its cursor and
// auth.Provider are safe for that concurrent use.
type Client struct {
	httpClient *http.Client
	ctx        model.Context
	authP      *auth.Provider
	cursor     *cursor.Cursor
}

// New builds a Client for one cluster. httpClient should come from
// internal/transport.New; cur is the cluster's shared ResourceVersionCursor.
func New(httpClient *http.Client, ctx model.Context, authP *auth.Provider, cur *cursor.Cursor) *Client {
	return &Client{httpClient: httpClient, ctx: ctx, authP: authP, cursor: cur}
}

func (c *Client) do(ctx context.Context, req *http.Request, totalTimeout time.Duration) (*http.Response, error) {
	creds := c.authP.Get(ctx)
	switch creds.Scheme {
	case auth.SchemeBasic:
		req.SetBasicAuth(creds.Username, creds.Password)
	case auth.SchemeBearer:
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	ctx, cancel := context.WithTimeout(ctx, totalTimeout)
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, classifyTransportError(err)
	}
	// cancel() is deferred to the caller via resp.Body's close path: wrap
	// the body so cancel fires once the caller is done reading it.
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// decodeEnvelope reads body fully, then either unmarshals a Status{status:
// "Failure"} document and returns it as a classified error, or unmarshals
// the body into success.
func decodeEnvelope(body io.Reader, success interface{}) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return errcat.Fatal.New(fmt.Errorf("reading response body: %w", err))
	}

	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return errcat.Fatal.New(fmt.Errorf("decoding response: %w", err))
	}
	if probe.Status == "Failure" {
		var status metav1.Status
		if err := json.Unmarshal(raw, &status); err != nil {
			return errcat.Fatal.New(fmt.Errorf("decoding status failure: %w", err))
		}
		return classifyApiError(&model.ApiError{Code: int(status.Code), Reason: string(status.Reason), Message: status.Message})
	}

	if err := json.Unmarshal(raw, success); err != nil {
		return errcat.Fatal.New(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// List performs a single list attempt: GET, decode one JSON body, inject
// apiVersion/kind into every item, and observe each item's resourceVersion.
func (c *Client) List(ctx context.Context, selector model.ObjectSelector) ([]model.Object, error) {
	urlStr := buildURL(c.ctx.Server, selector, false, 0, 0)

	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, errcat.Fatal.New(err)
	}

	resp, err := c.do(ctx, req, listTotalTimeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc struct {
		ApiVersion string         `json:"apiVersion"`
		Kind       string         `json:"kind"`
		Items      []model.Object `json:"items"`
	}
	if err := decodeEnvelope(resp.Body, &doc); err != nil {
		return nil, err
	}

	kind := stripListSuffix(doc.Kind)
	for _, item := range doc.Items {
		item["apiVersion"] = doc.ApiVersion
		item["kind"] = kind
		c.cursor.Observe(item.ResourceVersion())
	}
	return doc.Items, nil
}

func stripListSuffix(kind string) string {
	const suffix = "List"
	if len(kind) > len(suffix) && kind[len(kind)-len(suffix):] == suffix {
		return kind[:len(kind)-len(suffix)]
	}
	return kind
}

// watchLine is one newline-delimited JSON line of a watch stream.
type watchLine struct {
	Type   string      `json:"type"`
	Object model.Object `json:"object"`
}

// Watch performs a single watch attempt: GET with watch=1 and the current
// cursor, then reads newline-delimited JSON until the stream ends. Returns
// nil on a normal server-side close (empty line / EOF).
func (c *Client) Watch(ctx context.Context, selector model.ObjectSelector, out *channels.Queue[model.ObjectEvent]) error {
	urlStr := buildURL(c.ctx.Server, selector, true, c.cursor.Get(), 0)

	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return errcat.Fatal.New(err)
	}

	resp, err := c.do(ctx, req, watchTotalTimeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			return nil
		}

		var wl watchLine
		if err := json.Unmarshal(line, &wl); err != nil {
			return errcat.Fatal.New(fmt.Errorf("decoding watch line: %w", err))
		}

		if wl.Type == "ERROR" {
			raw, _ := json.Marshal(wl.Object)
			var status metav1.Status
			if err := json.Unmarshal(raw, &status); err != nil {
				return errcat.Fatal.New(fmt.Errorf("decoding watch error line: %w", err))
			}
			return classifyApiError(&model.ApiError{Code: int(status.Code), Reason: string(status.Reason), Message: status.Message})
		}

		action, err := parseWatchAction(wl.Type)
		if err != nil {
			return errcat.Fatal.New(err)
		}

		c.cursor.Observe(wl.Object.ResourceVersion())

		out.Send(model.ObjectEvent{Context: c.ctx, Action: action, Object: wl.Object, TimeCreated: time.Now()})
	}
	if err := scanner.Err(); err != nil {
		return classifyTransportError(err)
	}
	// scanner hit EOF without a trailing empty line: still a normal close.
	return nil
}

func parseWatchAction(t string) (model.Action, error) {
	switch t {
	case "ADDED":
		return model.ActionAdded, nil
	case "MODIFIED":
		return model.ActionModified, nil
	case "DELETED":
		return model.ActionDeleted, nil
	default:
		return 0, fmt.Errorf("unrecognized watch event type %q", t)
	}
}

// ListApiGroups lists the non-core API groups discoverable at /apis; each
// discovered version of a group becomes one ApiGroup entry.
func (c *Client) ListApiGroups(ctx context.Context) ([]model.ApiGroup, error) {
	urlStr := c.ctx.Server + "/apis"

	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, errcat.Fatal.New(err)
	}
	resp, err := c.do(ctx, req, listTotalTimeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc struct {
		Groups []struct {
			Name     string `json:"name"`
			Versions []struct {
				GroupVersion string `json:"groupVersion"`
				Version      string `json:"version"`
			} `json:"versions"`
		} `json:"groups"`
	}
	if err := decodeEnvelope(resp.Body, &doc); err != nil {
		return nil, err
	}

	var groups []model.ApiGroup
	for _, g := range doc.Groups {
		for _, v := range g.Versions {
			groups = append(groups, model.ApiGroup{
				Name:     g.Name,
				Version:  v.Version,
				Endpoint: "/apis/" + v.GroupVersion,
			})
		}
	}
	return groups, nil
}

// ListApiResources lists the kinds available under one ApiGroup.
func (c *Client) ListApiResources(ctx context.Context, group model.ApiGroup) ([]model.ApiResource, error) {
	urlStr := c.ctx.Server + group.Endpoint

	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, errcat.Fatal.New(err)
	}
	resp, err := c.do(ctx, req, listTotalTimeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc struct {
		Resources []struct {
			Name       string   `json:"name"`
			Kind       string   `json:"kind"`
			Namespaced bool     `json:"namespaced"`
			Verbs      []string `json:"verbs"`
		} `json:"resources"`
	}
	if err := decodeEnvelope(resp.Body, &doc); err != nil {
		return nil, err
	}

	var resources []model.ApiResource
	for _, r := range doc.Resources {
		resources = append(resources, model.ApiResource{
			Group:      group,
			Kind:       r.Kind,
			Plural:     r.Name,
			Namespaced: r.Namespaced,
			Verbs:      r.Verbs,
		})
	}
	return resources, nil
}

// PodLogOptions configures StreamPodLogs beyond what selector already carries.
type PodLogOptions struct {
	TailLines    int
	SinceSeconds int
	Previous     bool
}

// StreamPodLogs streams one pod's container log, emitting each
// newline-terminated chunk as an ActionLogLine event until EOF.
func (c *Client) StreamPodLogs(ctx context.Context, selector model.ObjectSelector, opts PodLogOptions, out *channels.Queue[model.ObjectEvent]) error {
	urlStr := buildPodLogURL(c.ctx.Server, selector, opts.TailLines, opts.SinceSeconds, opts.Previous)

	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return errcat.Fatal.New(err)
	}
	resp, err := c.do(ctx, req, watchTotalTimeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			out.Send(model.ObjectEvent{Context: c.ctx, Action: model.ActionLogLine, LogLine: line, TimeCreated: time.Now()})
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return classifyTransportError(err)
		}
	}
}
