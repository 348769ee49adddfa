// Package transport provides claude.Transport implementations.
//
// HTTPTransport talks to the API directly with net/http. SDKTransport routes
// the same requests through anthropic-sdk-go, which adds its own retries for
// connection failures, 408, 409, 429 and 5xx responses.
//
// Both return *claude.TransportError for every failure, and both are safe
// for concurrent use.
package transport
