// Package metaclient is the client side of the metad API: a locally cached
// cluster-state snapshot plus asynchronous create operations against the
// authoritative registry.
package metaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/jstrand/preflight/internal/api"
	"github.com/jstrand/preflight/internal/concurrency"
	"github.com/jstrand/preflight/internal/rpc"
)

type Client struct {
	rpc     *rpc.Client
	baseURL string
	state   concurrency.Cell[*api.ClusterState]
}

func New(rpcClient *rpc.Client, baseURL string) *Client {
	return &Client{rpc: rpcClient, baseURL: baseURL}
}

// State returns the last synced snapshot, which may be nil before the first
// sync and is always potentially stale relative to metad.
func (c *Client) State() *api.ClusterState { return c.state.Get() }

// Refresh fetches the current snapshot once.
func (c *Client) Refresh(ctx context.Context) error {
	return c.fetchState(ctx, "")
}

// Run keeps the cached snapshot in sync by long polling metad until ctx is
// done, retrying with backoff on failure.
func (c *Client) Run(ctx context.Context) {
	tight := make(chan struct{})
	go func() {
		defer close(tight)
		for {
			select {
			case tight <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	concurrency.SyncLoop(tight, 0, time.Minute*15, func() bool {
		err := c.sync(ctx)
		if err != nil {
			log.Printf("error syncing cluster state from metad: %s", err)
		}
		return err == nil || ctx.Err() != nil
	})
}

func (c *Client) sync(ctx context.Context) error {
	after := ""
	if s := c.state.Get(); s != nil {
		after = strconv.FormatUint(s.Revision, 10)
	}

	// recycle the long polling connection after a reasonable period
	ctx, done := context.WithTimeout(ctx, concurrency.Jitter(time.Minute*15))
	defer done()

	err := c.fetchState(ctx, after)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil // connection recycling timeouts are expected
	}
	return err
}

func (c *Client) fetchState(ctx context.Context, after string) error {
	url := c.baseURL + "/state"
	if after != "" {
		url += "?after=" + after
	}

	resp, err := c.rpc.GET(ctx, url)
	if err != nil {
		return fmt.Errorf("requesting cluster state: %w", err)
	}
	defer resp.Body.Close()

	state := &api.ClusterState{}
	if err := json.NewDecoder(resp.Body).Decode(state); err != nil {
		return fmt.Errorf("decoding cluster state: %w", err)
	}

	c.state.Swap(state)
	return nil
}

// CreateIndex requests creation of an index and reports the result through
// done, exactly once, from the goroutine handling the response. A 409 from
// metad means another installer won the creation race and surfaces as
// api.AlreadyExistsError.
func (c *Client) CreateIndex(ctx context.Context, name string, spec api.IndexSpec, done func(error)) {
	go func() {
		done(c.create(ctx, "/indices/", "index", name, &spec))
	}()
}

// PutTemplate requests installation of a template. Completion semantics match
// CreateIndex.
func (c *Client) PutTemplate(ctx context.Context, name string, spec api.TemplateSpec, done func(error)) {
	go func() {
		done(c.create(ctx, "/templates/", "template", name, &spec))
	}()
}

func (c *Client) create(ctx context.Context, prefix, resource, name string, spec any) error {
	body, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding %s spec: %w", resource, err)
	}

	resp, err := c.rpc.PUT(ctx, c.baseURL+prefix+name, "application/json", bytes.NewReader(body))
	se := &rpc.ServerError{}
	if errors.As(err, &se) && se.Status == 409 {
		return &api.AlreadyExistsError{Resource: resource, Name: name}
	}
	if err != nil {
		return err
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// Audit returns the registry's recent audit entries.
func (c *Client) Audit(ctx context.Context) ([]api.AuditEntry, error) {
	resp, err := c.rpc.GET(ctx, c.baseURL+"/audit")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entries := []api.AuditEntry{}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding audit entries: %w", err)
	}
	return entries, nil
}
