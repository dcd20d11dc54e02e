// Package transport defines the interface for pluggable inbound transports.
//
// Each transport (HTTP, gRPC) implements this interface and hands decoded
// requests to the dispatcher. The dispatcher doesn't care how requests
// arrive; it only works with the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/moodshift/internal/message"
)

// Handler processes one request and returns the reply. The dispatcher
// provides this handler to each transport.
type Handler func(ctx context.Context, req *message.Request) (*message.Response, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g. "grpc", "http").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
