// Package diagnostics exposes the session coordinator's readiness over the
// standard gRPC health protocol.
//
// The overall status ("") is NOT_SERVING until the first initialization
// settles and SERVING afterwards. SessionService reports SERVING only while
// someone is signed in.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/cofind/internal/client/session"
	"github.com/dmitrijs2005/cofind/internal/logging"
)

// SessionService is the health service name tracking authentication.
const SessionService = "cofind.session"

// StateSource is satisfied by *session.Coordinator.
type StateSource interface {
	Subscribe() <-chan session.State
}

type Server struct {
	address string
	states  StateSource
	health  *health.Server
	logger  logging.Logger
}

func NewServer(address string, states StateSource, l logging.Logger) *Server {
	if l == nil {
		l = logging.Nop()
	}
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		address: address,
		states:  states,
		health:  h,
		logger:  l.With("module", "diagnostics"),
	}
}

func status(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Apply maps one state snapshot onto the health statuses.
func (s *Server) Apply(st session.State) {
	s.health.SetServingStatus("", status(st.Initialized))
	s.health.SetServingStatus(SessionService, status(st.IsAuthenticated()))
}

// Follow applies every published snapshot until ctx ends or the source
// closes its channel. A closed source leaves everything NOT_SERVING.
func (s *Server) Follow(ctx context.Context) {
	ch := s.states.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
				s.health.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)
				return
			}
			s.Apply(st)
		}
	}
}

// Serve follows the state source and answers health checks on lis until ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	followed := make(chan struct{})
	go func() {
		defer close(followed)
		s.Follow(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting health server", "address", lis.Addr().String())

	err := srv.Serve(lis)
	cancel()
	<-followed
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}

// Run listens on the configured address and calls Serve.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
