package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

// target is one server endpoint. Unix sockets get their own client since the
// dialer ignores the request host.
type target struct {
	url    string
	client *http.Client
}

type httpClientTransport struct {
	targets    []target
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second
	tcpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     timeout,
		},
	}

	targets := make([]target, len(config.Endpoints))
	for i, endpoint := range config.Endpoints {
		network, address := splitEndpoint(endpoint)
		if address == "" {
			return fmt.Errorf("invalid endpoint %q", endpoint)
		}
		if network == "unix" {
			dialer := net.Dialer{Timeout: timeout}
			targets[i] = target{
				url: "http://unix" + RequestPath,
				client: &http.Client{
					Timeout: timeout,
					Transport: &http.Transport{
						DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
							return dialer.DialContext(ctx, "unix", address)
						},
						MaxIdleConnsPerHost: 10,
						IdleConnTimeout:     timeout,
					},
				},
			}
			continue
		}
		targets[i] = target{url: "http://" + address + RequestPath, client: tcpClient}
	}

	t.targets = targets
	t.counter = 0
	t.retryCount = max(config.RetryCount, 1)
	return nil
}

func (t *httpClientTransport) Send(req []byte) (resp []byte, err error) {
	// Check if the transport is initialized
	if len(t.targets) == 0 {
		return nil, fmt.Errorf("http transport not initialized")
	}

	for i := 0; i < t.retryCount; i++ {
		// Select the next server via round-robin
		idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.targets))
		if resp, err = t.send(t.targets[idx], req); err == nil {
			return resp, nil
		}
	}
	return nil, err
}

func (t *httpClientTransport) Close() error {
	for _, tg := range t.targets {
		tg.client.CloseIdleConnections()
	}
	t.targets = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *httpClientTransport) send(tg target, req []byte) ([]byte, error) {
	httpResponse, err := tg.client.Post(tg.url, "application/octet-stream", bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}
	return io.ReadAll(httpResponse.Body)
}
