package grpc

import (
	"context"
	"errors"

	"github.com/breviobot/breviobot-service/app/identity"
	"github.com/breviobot/breviobot-service/app/middleware"
	"github.com/breviobot/breviobot-service/app/service"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type accessAuthorizer interface {
	Authorize(ctx context.Context, accessToken string) (identity.Identity, error)
}

// BearerAuth guards every method except the ones listed as public. Callers
// pass "authorization: Bearer <token>" metadata.
type BearerAuth struct {
	authorizer accessAuthorizer
	enabled    bool
	public     map[string]struct{}
}

func NewBearerAuth(authorizer accessAuthorizer, enabled bool, publicMethods ...string) *BearerAuth {
	public := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = struct{}{}
	}
	return &BearerAuth{authorizer: authorizer, enabled: enabled, public: public}
}

func (a *BearerAuth) UnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if _, ok := a.public[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		id, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(identity.NewContext(ctx, id), req)
	}
}

func (a *BearerAuth) StreamInterceptor() gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		if _, ok := a.public[info.FullMethod]; ok {
			return handler(srv, ss)
		}
		id, err := a.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: identity.NewContext(ss.Context(), id)})
	}
}

func (a *BearerAuth) authenticate(ctx context.Context) (identity.Identity, error) {
	if !a.enabled {
		return identity.Anonymous(), nil
	}

	token := incomingBearerToken(ctx)
	if token == "" {
		return identity.Identity{}, status.Error(codes.Unauthenticated, service.ErrTokenRequired.Error())
	}

	id, err := a.authorizer.Authorize(ctx, token)
	if err != nil {
		var authErr *service.AuthenticationError
		if errors.As(err, &authErr) {
			logrus.WithField("reason", authErr.Message).Debug("Rejected bearer token (grpc)")
			return identity.Identity{}, status.Error(codes.Unauthenticated, authErr.Message)
		}
		logrus.WithError(err).Error("Failed to authorize call (grpc)")
		return identity.Identity{}, status.Error(codes.Internal, "internal server error")
	}
	return id, nil
}

func incomingBearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return middleware.BearerToken(values[0])
}

type wrappedServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
