// Package http provides the HTTP servers.
//
// The public server exposes a single route:
//   - GET / returning the greeting
//
// Every other path answers 404 and every other method on / answers 405,
// both with gin's default bodies. The optional admin server exposes:
//   - Health checks
//   - Prometheus metrics
package http
