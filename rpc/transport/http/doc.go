// Package http implements the transport of the dCol cache protocol over HTTP.
// Requests are POSTed as opaque bodies to /cache; the server additionally
// exposes its metrics at GET /metrics.
//
// Endpoints are either TCP addresses (localhost:8080, http://localhost:8080)
// or unix sockets (unix:///run/dcol.sock).
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are spread
//     round-robin over all endpoints; a failed request is retried on the next
//     endpoint up to the configured retry count.
//
//   - httpServerTransport: Implements IRPCServerTransport. With log level
//     debug every request is logged with its status and duration.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use once connected. It uses
//	an atomic counter for the round-robin selection.
package http
