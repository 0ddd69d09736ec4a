package grpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
	"github.com/turtacn/ssoguard/pkg/utils"
)

// DefaultPublicMethods are never authenticated: the health service and reflection.
var DefaultPublicMethods = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

// InterceptorChain 拦截器链
type InterceptorChain struct {
	log           logger.Logger
	tokens        service.TokenService
	publicMethods []string
}

// NewInterceptorChain 创建拦截器链. tokens may be nil, in which case no authentication
// interceptor is installed. publicMethods are full method prefixes.
func NewInterceptorChain(log logger.Logger, tokens service.TokenService, publicMethods ...string) *InterceptorChain {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &InterceptorChain{
		log:           log.WithComponent("grpc"),
		tokens:        tokens,
		publicMethods: append(append([]string{}, DefaultPublicMethods...), publicMethods...),
	}
}

// UnaryRecoveryInterceptor 恢复拦截器(捕获 panic)
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod),
				)
				err = status.Error(grpcCodes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor 日志拦截器
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()
		clientIP := clientAddress(ctx)
		ctx = context.WithValue(ctx, constants.ContextKeyClientIP, clientIP)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []logger.Field{
			logger.String("method", info.FullMethod),
			logger.String("client_ip", clientIP),
			logger.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			logger.String("status", code.String()),
		}
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			ic.log.Debug(ctx, "gRPC request completed", fields...)
		} else {
			ic.log.Info(ctx, "gRPC request completed", fields...)
		}
		return resp, err
	}
}

// UnaryAuthInterceptor 认证拦截器. Mirrors the HTTP middleware: no authorization
// metadata means the call proceeds unauthenticated, an invalid bearer token fails
// with Unauthenticated.
func (ic *InterceptorChain) UnaryAuthInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if ic.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return handler(ctx, req)
		}
		token := utils.ExtractBearer(values[0])
		if token == "" {
			return handler(ctx, req)
		}

		principal, err := ic.tokens.ToPrincipal(ctx, token)
		if err != nil {
			if errors.IsTransientError(err) {
				ic.log.Error(ctx, "token check unavailable", err, logger.String("method", info.FullMethod))
				return nil, status.Error(grpcCodes.Unavailable, "authentication temporarily unavailable")
			}
			ic.log.Debug(ctx, "bearer token rejected",
				logger.String("method", info.FullMethod),
				logger.Fingerprint(utils.TokenFingerprint(token)),
			)
			return nil, status.Error(grpcCodes.Unauthenticated, errors.ErrInvalidCredential.Error())
		}

		return handler(ContextWithPrincipal(ctx, principal), req)
	}
}

// UnaryErrorInterceptor 错误转换拦截器(将领域错误转换为 gRPC 状态码)
func (ic *InterceptorChain) UnaryErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		return resp, convertDomainErrorToGRPC(err)
	}
}

// ChainUnaryInterceptors 链式调用所有拦截器
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	interceptors := []grpc.UnaryServerInterceptor{
		ic.UnaryRecoveryInterceptor(), // 1. 恢复 panic
		ic.UnaryLoggingInterceptor(),  // 2. 日志
	}
	if ic.tokens != nil {
		interceptors = append(interceptors, ic.UnaryAuthInterceptor()) // 3. 认证
	}
	interceptors = append(interceptors, ic.UnaryErrorInterceptor()) // 4. 错误转换
	return grpc.ChainUnaryInterceptor(interceptors...)
}

func (ic *InterceptorChain) isPublic(method string) bool {
	for _, prefix := range ic.publicMethods {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

// convertDomainErrorToGRPC 将领域错误转换为 gRPC 错误
func convertDomainErrorToGRPC(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	cbcErr, ok := errors.AsCBCError(err)
	if !ok {
		return status.Error(grpcCodes.Internal, "internal server error")
	}

	switch cbcErr.HTTPStatus() {
	case 400:
		return status.Error(grpcCodes.InvalidArgument, cbcErr.Error())
	case 401:
		return status.Error(grpcCodes.Unauthenticated, cbcErr.Error())
	case 403:
		return status.Error(grpcCodes.PermissionDenied, cbcErr.Error())
	case 404:
		return status.Error(grpcCodes.NotFound, cbcErr.Error())
	case 429:
		return status.Error(grpcCodes.ResourceExhausted, cbcErr.Error())
	case 501:
		return status.Error(grpcCodes.Unimplemented, cbcErr.Error())
	case 503:
		return status.Error(grpcCodes.Unavailable, cbcErr.Error())
	default:
		return status.Error(grpcCodes.Internal, "internal server error")
	}
}

func clientAddress(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if ips := md.Get("x-forwarded-for"); len(ips) > 0 {
		return strings.TrimSpace(strings.Split(ips[0], ",")[0])
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// ContextWithPrincipal attaches principal to ctx.
func ContextWithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, constants.ContextKeyPrincipal, principal)
}

// PrincipalFromContext returns the principal set by the auth interceptor.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(constants.ContextKeyPrincipal).(*models.Principal)
	return p, ok && p != nil
}
