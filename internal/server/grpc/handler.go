package grpc

import (
	"context"

	"github.com/dmitrijs2005/memberauth/internal/common"
	pb "github.com/dmitrijs2005/memberauth/internal/proto"
	"github.com/dmitrijs2005/memberauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func credentials(req *structpb.Struct) services.Credentials {
	return services.Credentials{
		Email:    pb.String(req, pb.FieldEmail),
		Password: pb.String(req, pb.FieldPassword),
	}
}

// refreshToken reads the token from the request, falling back to the
// refresh_token metadata entry.
func refreshToken(ctx context.Context, req *structpb.Struct) string {
	if t := pb.String(req, pb.FieldRefreshToken); t != "" {
		return t
	}
	return metadataValue(ctx, common.RefreshTokenHeaderName)
}

// reply converts an outcome into the response struct. Issued tokens are
// placed both in the struct and in the response header metadata.
func (s *GRPCServer) reply(ctx context.Context, o services.Outcome) (*structpb.Struct, error) {
	fields := map[string]any{
		pb.FieldCode:    o.Code.String(),
		pb.FieldStatus:  o.HTTPStatus(),
		pb.FieldMessage: o.Message,
	}

	if o.OK() && o.Tokens != nil {
		fields[pb.FieldAccessToken] = o.Tokens.AccessToken
		fields[pb.FieldRefreshToken] = o.Tokens.RefreshToken

		md := metadata.Pairs(
			common.AccessTokenHeaderName, o.Tokens.AccessToken,
			common.RefreshTokenHeaderName, o.Tokens.RefreshToken,
		)
		if err := grpc.SetHeader(ctx, md); err != nil {
			s.logger.Error(ctx, "failed to set token header", "error", err)
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *GRPCServer) internalError(ctx context.Context, method string, err error) error {
	s.logger.Error(ctx, "request failed", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) Join(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	s.logger.Info(ctx, "Join request")

	o, err := s.auth.Join(ctx, credentials(req))
	if err != nil {
		return nil, s.internalError(ctx, "Join", err)
	}
	return s.reply(ctx, o)
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	o, err := s.auth.Login(ctx, credentials(req))
	if err != nil {
		return nil, s.internalError(ctx, "Login", err)
	}
	return s.reply(ctx, o)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	o, err := s.auth.Refresh(ctx, refreshToken(ctx, req))
	if err != nil {
		return nil, s.internalError(ctx, "Refresh", err)
	}
	return s.reply(ctx, o)
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	o, err := s.auth.Logout(ctx, refreshToken(ctx, req))
	if err != nil {
		return nil, s.internalError(ctx, "Logout", err)
	}
	return s.reply(ctx, o)
}

func (s *GRPCServer) Whoami(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	return structpb.NewStruct(map[string]any{
		pb.FieldMemberID: claims.MemberID(),
		pb.FieldEmail:    claims.Email,
	})
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	return structpb.NewStruct(map[string]any{pb.FieldStatus: "OK"})

}
