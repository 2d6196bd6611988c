package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "breviobot.auth.v1.AuthService"

	ValidateTokenMethod = "/" + ServiceName + "/ValidateToken"
	WhoAmIMethod        = "/" + ServiceName + "/WhoAmI"
)

// AuthServiceServer exchanges structpb messages so no generated code is needed.
type AuthServiceServer interface {
	ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAuthServiceServer(s gogrpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&authServiceDesc, srv)
}

var authServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "ValidateToken", Handler: validateTokenHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "breviobot/auth/v1/auth.proto",
}

func validateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).ValidateToken(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: ValidateTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).ValidateToken(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).WhoAmI(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).WhoAmI(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AuthServiceClient is the caller side of AuthServiceServer.
type AuthServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewAuthServiceClient(cc gogrpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken string, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"access_token": accessToken})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err = c.cc.Invoke(ctx, ValidateTokenMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) WhoAmI(ctx context.Context, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, WhoAmIMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
