// Package grpc serves the authentication service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/memberauth/internal/logging"
	pb "github.com/dmitrijs2005/memberauth/internal/proto"
	"github.com/dmitrijs2005/memberauth/internal/server/auth"
	"github.com/dmitrijs2005/memberauth/internal/server/services"
	"google.golang.org/grpc"
)

// AuthService is implemented by *services.AuthService.
type AuthService interface {
	Join(ctx context.Context, c services.Credentials) (services.Outcome, error)
	Login(ctx context.Context, c services.Credentials) (services.Outcome, error)
	Refresh(ctx context.Context, refreshToken string) (services.Outcome, error)
	Logout(ctx context.Context, refreshToken string) (services.Outcome, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type GRPCServer struct {
	address string
	auth    AuthService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc AuthService) *GRPCServer {
	if l == nil {
		l = logging.Nop()
	}
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    svc,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	// registers service
	pb.RegisterAuthServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
