package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTransport() *httpServerTransport {
	t := &httpServerTransport{}
	t.RegisterHandler(func(req []byte) []byte {
		return append([]byte("echo:"), req...)
	})
	return t
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		endpoint, network, address string
	}{
		{"localhost:8080", "tcp", "localhost:8080"},
		{"http://localhost:8080/", "tcp", "localhost:8080"},
		{"unix:///tmp/dcol.sock", "unix", "/tmp/dcol.sock"},
	}
	for _, tt := range tests {
		network, address := splitEndpoint(tt.endpoint)
		assert.Equal(t, tt.network, network, tt.endpoint)
		assert.Equal(t, tt.address, address, tt.endpoint)
	}
}

func TestHTTPTransport_TCP(t *testing.T) {
	ts := httptest.NewServer(echoTransport().Handler())
	defer ts.Close()

	client := NewHttpClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{Endpoints: []string{ts.URL}, TimeoutSecond: 2, RetryCount: 2}))
	defer client.Close()

	resp, err := client.Send([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(resp))

	// metrics are served next to the cache endpoint
	r, err := http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	_, err = io.ReadAll(r.Body)
	assert.NoError(t, err)

	// only POST is routed to the handler
	r, err = http.Get(ts.URL + RequestPath)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, r.StatusCode)
}

func TestHTTPTransport_Unix(t *testing.T) {
	// socket paths are limited in length, t.TempDir may be too long
	dir, err := os.MkdirTemp("", "dcol")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	endpoint := "unix://" + filepath.Join(dir, "s.sock")

	server := echoTransport()
	done := make(chan error, 1)
	go func() { done <- server.Listen(common.ServerConfig{Endpoint: endpoint, LogLevel: "debug"}) }()

	client := NewHttpClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 2, RetryCount: 1}))
	defer client.Close()

	require.Eventually(t, func() bool {
		resp, err := client.Send([]byte("ping"))
		return err == nil && string(resp) == "echo:ping"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, server.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return after close")
	}
}

func TestHTTPTransport_Errors(t *testing.T) {
	client := NewHttpClientTransport()
	_, err := client.Send([]byte("ping"))
	assert.Error(t, err, "not connected")
	assert.Error(t, client.Connect(common.ClientConfig{}))

	assert.Error(t, NewHttpServerTransport().Listen(common.ServerConfig{Endpoint: "localhost:0"}), "no handler")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()
	require.NoError(t, client.Connect(common.ClientConfig{Endpoints: []string{ts.URL}, TimeoutSecond: 1, RetryCount: 3}))
	_, err = client.Send([]byte("ping"))
	assert.Error(t, err)
}
