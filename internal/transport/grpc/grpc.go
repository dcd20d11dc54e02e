// Package grpc implements the gRPC transport for moodshift.
//
// The service is registered by hand with a JSON codec, so clients call
// /moodshift.v1.MoodShift/ProcessUserInput with content subtype "json" and
// the same request and response bodies as the HTTP transport. The standard
// gRPC health service is registered alongside it.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/transport"
)

// Service and method names on the wire.
const (
	ServiceName = "moodshift.v1.MoodShift"
	MethodName  = "/" + ServiceName + "/ProcessUserInput"
)

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Server builds a gRPC server serving handler. Listen uses it; tests can
// serve it on an in-memory listener.
func (t *Transport) Server(handler transport.Handler) *grpc.Server {
	t.server = grpc.NewServer()
	t.server.RegisterService(&serviceDesc, &service{handler: handler})

	t.health = health.NewServer()
	t.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(t.server, t.health)

	return t.server
}

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	srv := t.Server(handler)
	slog.Info("grpc transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		_ = t.Close()
	}()

	return srv.Serve(lis)
}

// Close marks the service not serving and gracefully stops the server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// ProcessUserInput calls the service over cc.
func ProcessUserInput(ctx context.Context, cc grpc.ClientConnInterface, req *message.Request) (*message.Response, error) {
	out := new(message.Response)
	if err := cc.Invoke(ctx, MethodName, req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

type moodShiftServer interface {
	ProcessUserInput(ctx context.Context, req *message.Request) (*message.Response, error)
}

type service struct {
	handler transport.Handler
}

// ProcessUserInput maps handler outcomes onto status codes. A synthesis
// failure is not a transport error: the reply is returned with success false.
func (s *service) ProcessUserInput(ctx context.Context, req *message.Request) (*message.Response, error) {
	resp, err := s.handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	var synthErr *message.SynthesisError
	switch {
	case errors.Is(err, message.ErrInvalidRequest):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &synthErr):
		return &message.Response{Error: "Audio synthesis failed", Response: synthErr.Reply}, nil
	default:
		slog.Error("request failed", "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
}

func processUserInputHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(moodShiftServer).ProcessUserInput(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(moodShiftServer).ProcessUserInput(ctx, req.(*message.Request))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*moodShiftServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessUserInput", Handler: processUserInputHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "moodshift/v1/moodshift.proto",
}
