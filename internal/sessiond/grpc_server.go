package sessiond

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turboinfra/agent-core/internal/refine"
)

// SessionRPCServer is the hand-written service contract: every method is
// unary, with structpb payloads bridging to the same store and runner the
// HTTP surface uses.
type SessionRPCServer interface {
	GetHealth(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMetrics(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type SessionHandler struct {
	store  *SessionStore
	runner *SessionRunner
}

func NewSessionHandler(store *SessionStore, runner *SessionRunner) *SessionHandler {
	return &SessionHandler{store: store, runner: runner}
}

func RegisterSessionServer(server *grpc.Server, handler SessionRPCServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*SessionRPCServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetHealth", Handler: getHealthHandler},
			{MethodName: "CreateSession", Handler: createSessionHandler},
			{MethodName: "GetSession", Handler: getSessionHandler},
			{MethodName: "ListSessions", Handler: listSessionsHandler},
			{MethodName: "StartSession", Handler: startSessionHandler},
			{MethodName: "CancelSession", Handler: cancelSessionHandler},
			{MethodName: "GetHistory", Handler: getHistoryHandler},
			{MethodName: "GetMetrics", Handler: getMetricsHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "proto/turboinfra/v1/session.proto",
	}, handler)
}

// sessionRef is the common request shape for per-session methods
type sessionRef struct {
	SessionID string `json:"session_id"`
}

type createSessionRequest struct {
	SessionID    string `json:"session_id"`
	WorkloadYAML string `json:"workload_yaml"`
}

func (h *SessionHandler) GetHealth(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *SessionHandler) CreateSession(_ context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[createSessionRequest](request)
	if err != nil {
		return nil, err
	}
	if decoded.WorkloadYAML == "" {
		return nil, fmt.Errorf("workload_yaml is required")
	}
	rec, err := h.runner.Create(decoded.SessionID, decoded.WorkloadYAML)
	if err != nil {
		return nil, err
	}
	return toStruct(convertSessionToJSON(rec))
}

func (h *SessionHandler) GetSession(_ context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[sessionRef](request)
	if err != nil {
		return nil, err
	}
	rec, ok := h.store.Get(decoded.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, decoded.SessionID)
	}
	return toStruct(convertSessionToJSON(rec))
}

func (h *SessionHandler) ListSessions(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	records := h.store.List(0)
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, convertSessionToJSON(rec))
	}
	return toList(out)
}

func (h *SessionHandler) StartSession(_ context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[sessionRef](request)
	if err != nil {
		return nil, err
	}
	rec, err := h.runner.Start(decoded.SessionID)
	if err != nil {
		return nil, err
	}
	return toStruct(convertSessionToJSON(rec))
}

func (h *SessionHandler) CancelSession(_ context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[sessionRef](request)
	if err != nil {
		return nil, err
	}
	rec, err := h.runner.Cancel(decoded.SessionID)
	if err != nil {
		return nil, err
	}
	return toStruct(convertSessionToJSON(rec))
}

func (h *SessionHandler) GetHistory(_ context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[sessionRef](request)
	if err != nil {
		return nil, err
	}
	rec, ok := h.store.Get(decoded.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, decoded.SessionID)
	}
	snap := rec.Snapshot()
	return toStruct(map[string]any{
		"session_id": rec.ID,
		"history":    snap.History,
		"summary":    refine.SummarizeHistory(snap.History),
	})
}

func (h *SessionHandler) GetMetrics(_ context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	decoded, err := decodeStruct[sessionRef](request)
	if err != nil {
		return nil, err
	}
	rec, ok := h.store.Get(decoded.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, decoded.SessionID)
	}
	return toStruct(map[string]any{
		"session_id": rec.ID,
		"metrics":    rec.Timeline.Names(),
		"summary":    rec.Timeline.Summary(),
	})
}

func toStruct(value any) (*structpb.Struct, error) {
	serialized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	decoded := map[string]any{}
	if err := json.Unmarshal(serialized, &decoded); err != nil {
		return nil, fmt.Errorf("failed to shape response object: %w", err)
	}
	result, err := structpb.NewStruct(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to convert response to protobuf struct: %w", err)
	}
	return result, nil
}

func toList(value any) (*structpb.ListValue, error) {
	serialized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response list: %w", err)
	}

	decoded := []any{}
	if err := json.Unmarshal(serialized, &decoded); err != nil {
		return nil, fmt.Errorf("failed to shape response list: %w", err)
	}
	result, err := structpb.NewList(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to convert response to protobuf list: %w", err)
	}
	return result, nil
}

func decodeStruct[T any](input *structpb.Struct) (T, error) {
	var out T
	serialized, err := json.Marshal(input.AsMap())
	if err != nil {
		return out, fmt.Errorf("request payload could not be encoded: %w", err)
	}
	if err := json.Unmarshal(serialized, &out); err != nil {
		return out, fmt.Errorf("request payload shape is invalid: %w", err)
	}
	return out, nil
}

func getHealthHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(emptypb.Empty)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).GetHealth(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetHealth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).GetHealth(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, request, info, handler)
}

func createSessionHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(structpb.Struct)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).CreateSession(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCreateSession}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).CreateSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}

func getSessionHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(structpb.Struct)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).GetSession(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetSession}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).GetSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}

func listSessionsHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(emptypb.Empty)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).ListSessions(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListSessions}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).ListSessions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, request, info, handler)
}

func startSessionHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(structpb.Struct)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).StartSession(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStartSession}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).StartSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}

func cancelSessionHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(structpb.Struct)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).CancelSession(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCancelSession}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).CancelSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}

func getHistoryHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(structpb.Struct)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).GetHistory(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetHistory}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).GetHistory(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}

func getMetricsHandler(
	srv any,
	ctx context.Context,
	decoder func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	request := new(structpb.Struct)
	if err := decoder(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionRPCServer).GetMetrics(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetMetrics}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionRPCServer).GetMetrics(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}
