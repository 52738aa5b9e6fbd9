package metaclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jstrand/preflight/internal/api"
	"github.com/jstrand/preflight/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	svr := httptest.NewTLSServer(handler)
	t.Cleanup(svr.Close)

	cli := &rpc.Client{Client: &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}}
	return New(cli, svr.URL)
}

func TestRefresh(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/state", r.URL.Path)
		json.NewEncoder(w).Encode(&api.ClusterState{
			Revision: 7,
			Indices:  map[string]api.IndexMetadata{"test-index": {Name: "test-index"}},
		})
	}))

	assert.Nil(t, client.State())

	require.NoError(t, client.Refresh(context.Background()))

	state := client.State()
	require.NotNil(t, state)
	assert.Equal(t, uint64(7), state.Revision)
	_, ok := state.Index("test-index")
	assert.True(t, ok)
}

func TestRefreshServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", 500)
	}))

	assert.Error(t, client.Refresh(context.Background()))
	assert.Nil(t, client.State())
}

func TestCreateIndex(t *testing.T) {
	tests := []struct {
		Name   string
		Status int
		Check  func(*testing.T, error)
	}{
		{
			Name:   "created",
			Status: 201,
			Check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			Name:   "lost the race",
			Status: 409,
			Check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.True(t, api.IsAlreadyExists(err))
			},
		},
		{
			Name:   "server error",
			Status: 502,
			Check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.False(t, api.IsAlreadyExists(err))
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "PUT", r.Method)
				assert.Equal(t, "/indices/test-index", r.URL.Path)

				spec := api.IndexSpec{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
				assert.Equal(t, 1, spec.Settings.Shards)

				w.WriteHeader(test.Status)
			}))

			errCh := make(chan error, 1)
			client.CreateIndex(context.Background(), "test-index", api.IndexSpec{Settings: api.IndexSettings{Shards: 1}}, func(err error) {
				errCh <- err
			})
			test.Check(t, <-errCh)
		})
	}
}

func TestPutTemplate(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/templates/test-template", r.URL.Path)
		w.WriteHeader(201)
	}))

	errCh := make(chan error, 1)
	client.PutTemplate(context.Background(), "test-template", api.TemplateSpec{Version: 2}, func(err error) {
		errCh <- err
	})
	assert.NoError(t, <-errCh)
}

func TestRun(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&api.ClusterState{Revision: 42})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		state := client.State()
		return state != nil && state.Revision == 42
	}, time.Second*5, time.Millisecond*10)

	cancel()
	<-stopped
}

func TestAudit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audit", r.URL.Path)
		json.NewEncoder(w).Encode([]api.AuditEntry{{ID: "test-id", Action: "create-index"}})
	}))

	entries, err := client.Audit(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test-id", entries[0].ID)
}
