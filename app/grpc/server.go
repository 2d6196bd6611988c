package grpc

import (
	"context"
	"errors"

	"github.com/breviobot/breviobot-service/app/identity"
	"github.com/breviobot/breviobot-service/app/service"
	"github.com/breviobot/breviobot-service/config"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type AuthServer struct {
	authorizer accessAuthorizer
}

func NewAuthServer(authorizer accessAuthorizer) *AuthServer {
	return &AuthServer{authorizer: authorizer}
}

// ValidateToken lets other services check an access token. An unusable token
// is a normal answer (valid=false), not an RPC error.
func (s *AuthServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := req.GetFields()["access_token"].GetStringValue()
	if token == "" {
		logrus.Debug("Validate token validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, "access_token is required")
	}

	id, err := s.authorizer.Authorize(ctx, token)
	if err != nil {
		var authErr *service.AuthenticationError
		if !errors.As(err, &authErr) {
			logrus.WithError(err).Error("Validate token failed (grpc)")
			return nil, status.Error(codes.Internal, "internal server error")
		}
		logrus.WithField("reason", authErr.Message).Debug("Validate token rejected (grpc)")
		return structpb.NewStruct(map[string]any{
			"valid":  false,
			"reason": authErr.Message,
		})
	}

	logrus.WithField("user_id", id.UserID).Debug("Validate token succeeded (grpc)")
	return identityStruct(id, map[string]any{"valid": true})
}

func (s *AuthServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, service.ErrTokenRequired.Error())
	}
	return identityStruct(id, nil)
}

func identityStruct(id identity.Identity, extra map[string]any) (*structpb.Struct, error) {
	fields := map[string]any{
		"user_id":  float64(id.UserID),
		"username": id.Username,
		"role":     id.Role,
	}
	for k, v := range extra {
		fields[k] = v
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// NewServer builds the gRPC server with the auth service, bearer auth and
// the standard health service registered.
func NewServer(authorizer accessAuthorizer, cfg config.AuthConfig) (*gogrpc.Server, *health.Server) {
	bearer := NewBearerAuth(authorizer, cfg.Enabled,
		ValidateTokenMethod,
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_Watch_FullMethodName,
	)
	server := gogrpc.NewServer(
		gogrpc.UnaryInterceptor(bearer.UnaryInterceptor()),
		gogrpc.StreamInterceptor(bearer.StreamInterceptor()),
	)
	RegisterAuthServiceServer(server, NewAuthServer(authorizer))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}
