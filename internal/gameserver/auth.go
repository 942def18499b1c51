package gameserver

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// OperatorTokenHeader carries the operator token on prompt RPCs.
const OperatorTokenHeader = "x-operator-token"

// operatorMethods answer or reveal reload prompts and require the token.
// The hook RPCs come from the host middleware and are not gated.
var operatorMethods = map[string]bool{
	MethodListPrompts:   true,
	MethodResolvePrompt: true,
}

// HashOperatorToken creates a bcrypt hash of token for the server config.
//
// Precondition: token must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashOperatorToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// OperatorAuth rejects prompt RPCs whose OperatorTokenHeader does not match
// the bcrypt hash. An empty hash disables the check.
func OperatorAuth(hash string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if hash == "" || !operatorMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		tokens := md.Get(OperatorTokenHeader)
		if len(tokens) == 0 {
			return nil, status.Error(codes.Unauthenticated, "operator token required")
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(tokens[0])) != nil {
			return nil, status.Error(codes.PermissionDenied, "operator token rejected")
		}
		return handler(ctx, req)
	}
}

// WithOperatorToken attaches token to outgoing calls made with ctx.
func WithOperatorToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, OperatorTokenHeader, token)
}
