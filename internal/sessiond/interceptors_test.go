package sessiond

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turboinfra/agent-core/internal/workload"
)

func TestRecoveryInterceptorCatchesPanic(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: MethodGetSession}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal after panic, got %v", err)
	}
}

func TestErrorInterceptorMapsDomainErrors(t *testing.T) {
	interceptor := ErrorUnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: MethodStartSession}

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", &workload.ValidationError{Field: "ops[0].shape", Reason: "unresolved dimension"}, codes.InvalidArgument},
		{"missing id", ErrSessionIDMissing, codes.InvalidArgument},
		{"not found", fmt.Errorf("%w: sess-1", ErrSessionNotFound), codes.NotFound},
		{"terminal", fmt.Errorf("%w: sess-1", ErrSessionTerminal), codes.FailedPrecondition},
		{"duplicate", fmt.Errorf("session already exists: sess-1"), codes.AlreadyExists},
		{"opaque", fmt.Errorf("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
				return nil, tt.err
			})
			if got := status.Code(err); got != tt.want {
				t.Fatalf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorInterceptorPreservesStatusErrors(t *testing.T) {
	interceptor := ErrorUnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: MethodGetSession}

	original := status.Error(codes.Unauthenticated, "no token")
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, original
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("existing status code rewritten: %v", err)
	}
}

func TestErrorInterceptorPassesSuccess(t *testing.T) {
	interceptor := ErrorUnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: MethodGetHealth}

	resp, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("expected pass-through, got %v, %v", resp, err)
	}
}
