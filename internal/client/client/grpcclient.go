package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/memberauth/internal/common"
	pb "github.com/dmitrijs2005/memberauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *pb.AuthServiceClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.tokens()
	ctx = withAccessToken(ctx, access)

	err := invoker(ctx, method, req, reply, cc, opts...)

	if err != nil {

		st, ok := status.FromError(err)
		if !ok {
			return err
		}

		if st.Code() != codes.Unauthenticated {
			return err
		}
		if st.Message() != common.ErrTokenExpired.Error() {
			return err
		}

		if refresh == "" {
			return err
		}

		res, rerr := s.refresh(ctx, refresh)
		if rerr != nil {
			return rerr
		}
		if !res.OK() {
			return err
		}

		// tokens refreshed, retry with the new access token
		access, _ = s.tokens()
		ctx = withAccessToken(ctx, access)
		return invoker(ctx, method, req, reply, cc, opts...)

	}

	return err
}

func NewMemberAuthClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient(opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func credentialsStruct(email, password string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		pb.FieldEmail:    email,
		pb.FieldPassword: password,
	})
}

func toResult(resp *structpb.Struct) Result {
	return Result{
		Code:    pb.String(resp, pb.FieldCode),
		Status:  int(pb.Number(resp, pb.FieldStatus)),
		Message: pb.String(resp, pb.FieldMessage),
	}
}

// storeTokens keeps the token pair of a successful response. Header metadata
// wins over the body when both are present.
func (s *GRPCClient) storeTokens(resp *structpb.Struct, header metadata.MD) {
	access := pb.String(resp, pb.FieldAccessToken)
	refresh := pb.String(resp, pb.FieldRefreshToken)
	if v := header.Get(common.AccessTokenHeaderName); len(v) > 0 {
		access = v[0]
	}
	if v := header.Get(common.RefreshTokenHeaderName); len(v) > 0 {
		refresh = v[0]
	}
	if access != "" && refresh != "" {
		s.setTokens(access, refresh)
	}
}

func (s *GRPCClient) Join(ctx context.Context, email, password string) (Result, error) {

	req, err := credentialsStruct(email, password)
	if err != nil {
		return Result{}, err
	}

	resp, err := s.client.Join(ctx, req)
	if err != nil {
		return Result{}, s.mapError(err)
	}

	return toResult(resp), nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (Result, error) {

	req, err := credentialsStruct(email, password)
	if err != nil {
		return Result{}, err
	}

	var header metadata.MD
	resp, err := s.client.Login(ctx, req, grpc.Header(&header))
	if err != nil {
		return Result{}, s.mapError(err)
	}

	res := toResult(resp)
	if res.OK() {
		s.storeTokens(resp, header)
	}
	return res, nil
}

// Refresh exchanges the stored refresh token for a new pair.
func (s *GRPCClient) Refresh(ctx context.Context) (Result, error) {
	_, refresh := s.tokens()
	if refresh == "" {
		return Result{}, ErrNotLoggedIn
	}
	return s.refresh(ctx, refresh)
}

func (s *GRPCClient) refresh(ctx context.Context, refresh string) (Result, error) {

	req, err := structpb.NewStruct(map[string]any{pb.FieldRefreshToken: refresh})
	if err != nil {
		return Result{}, err
	}

	var header metadata.MD
	resp, err := s.client.Refresh(ctx, req, grpc.Header(&header))
	if err != nil {
		return Result{}, s.mapError(err)
	}

	res := toResult(resp)
	if res.OK() {
		s.storeTokens(resp, header)
	}
	return res, nil
}

// Logout revokes the stored refresh token on the server and forgets both
// tokens locally, whatever the server answered.
func (s *GRPCClient) Logout(ctx context.Context) (Result, error) {
	_, refresh := s.tokens()
	if refresh == "" {
		return Result{}, ErrNotLoggedIn
	}

	req, err := structpb.NewStruct(map[string]any{pb.FieldRefreshToken: refresh})
	if err != nil {
		return Result{}, err
	}

	resp, err := s.client.Logout(ctx, req)
	if err != nil {
		return Result{}, s.mapError(err)
	}

	s.setTokens("", "")
	return toResult(resp), nil
}

func (s *GRPCClient) Whoami(ctx context.Context) (*Identity, error) {
	access, _ := s.tokens()
	if access == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Whoami(ctx, &structpb.Struct{})
	if err != nil {
		return nil, s.mapError(err)
	}

	return &Identity{
		MemberID: pb.String(resp, pb.FieldMemberID),
		Email:    pb.String(resp, pb.FieldEmail),
	}, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return s.mapError(err)
	}

	if pb.String(resp, pb.FieldStatus) != "OK" {
		return ErrUnavailable
	}

	return nil

}

func (s *GRPCClient) LoggedIn() bool {
	_, refresh := s.tokens()
	return refresh != ""
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
