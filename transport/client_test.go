package transport

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-freightsync/pkg/testsupport"
)

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)

	_, err = New("://bad")
	require.Error(t, err)
}

func TestClient_BearerHeader(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("orders", testsupport.Document{"id": "o-1"})

	tests := []struct {
		name  string
		token TokenSource
		want  string
	}{
		{name: "token held", token: StaticToken("secret"), want: "Bearer secret"},
		{name: "empty token", token: StaticToken(""), want: ""},
		{name: "no source", token: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(backend.URL(), WithTokenSource(tt.token))
			require.NoError(t, err)

			var out []map[string]any
			require.NoError(t, client.Get(context.Background(), "/orders", nil, &out))
			assert.Len(t, out, 1)

			last, ok := backend.LastRequest()
			require.True(t, ok)
			assert.Equal(t, tt.want, last.Authorization)
		})
	}
}

func TestClient_RequestIDOnEveryRequest(t *testing.T) {
	backend := testsupport.NewBackend(t)
	client, err := New(backend.URL() + "/")
	require.NoError(t, err)

	require.NoError(t, client.Get(context.Background(), "orders", nil, nil))
	require.NoError(t, client.Get(context.Background(), "orders", nil, nil))

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	for _, req := range reqs {
		_, err := uuid.Parse(req.RequestID)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, reqs[0].RequestID, reqs[1].RequestID)
}

func TestClient_QueryAndBody(t *testing.T) {
	backend := testsupport.NewBackend(t)
	client, err := New(backend.URL())
	require.NoError(t, err)

	var created map[string]any
	require.NoError(t, client.Post(context.Background(), "/trucks", map[string]any{"plate": "AA1234", "country": "UA"}, &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	var filtered []map[string]any
	require.NoError(t, client.Get(context.Background(), "/trucks/filter", url.Values{"country": {"UA"}}, &filtered))
	assert.Len(t, filtered, 1)

	last, _ := backend.LastRequest()
	assert.Equal(t, "country=UA", last.Query)

	require.NoError(t, client.Patch(context.Background(), "/trucks/"+id+"/status", map[string]string{"status": "busy"}, nil))
	require.NoError(t, client.Delete(context.Background(), "/trucks/"+id, nil))
}

func TestClient_NonSuccessIsNetworkError(t *testing.T) {
	backend := testsupport.NewBackend(t)
	client, err := New(backend.URL())
	require.NoError(t, err)

	err = client.Get(context.Background(), "/orders/missing", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.MethodGet, netErr.Method)
	assert.Contains(t, netErr.Body, "not found")
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	client, err := New("http://127.0.0.1:1", WithTimeout(time.Second))
	require.NoError(t, err)

	err = client.Get(context.Background(), "/orders", nil, nil)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	backend := testsupport.NewBackend(t)
	client, err := New(backend.URL(), WithRateLimit(0.001, 1))
	require.NoError(t, err)

	require.NoError(t, client.Get(context.Background(), "/orders", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = client.Get(ctx, "/orders", nil, nil)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 1, backend.Calls(http.MethodGet, "/orders"))
}
