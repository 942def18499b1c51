// Package gameserver exposes the firearm hooks to a virtual tabletop host over
// gRPC. The host middleware forwards item-created and pre-attack-roll events
// as RPCs, and an operator client answers reload prompts through the same
// service.
package gameserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "firearm.v1.FirearmService"

// Full method names.
const (
	MethodItemCreated   = "/" + ServiceName + "/ItemCreated"
	MethodPreAttackRoll = "/" + ServiceName + "/PreAttackRoll"
	MethodListPrompts   = "/" + ServiceName + "/ListPrompts"
	MethodResolvePrompt = "/" + ServiceName + "/ResolvePrompt"
)

// WeaponStore creates the weapon document for a newly created item.
// ItemCreated only calls it for items that pass Weapon.Validate.
//
// Postcondition: Returns nil on success, an error wrapping
// firearm.ErrWeaponExists for a redelivered item, or another error.
type WeaponStore interface {
	Create(ctx context.Context, w *firearm.Weapon, actorID string) error
}

// FirearmServiceServer is the server API for the firearm service.
type FirearmServiceServer interface {
	ItemCreated(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	PreAttackRoll(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	ListPrompts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResolvePrompt(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// FirearmService implements FirearmServiceServer on top of a HookDispatcher
// and a PromptBroker.
type FirearmService struct {
	dispatcher *HookDispatcher
	broker     *PromptBroker
	store      WeaponStore
	logger     *zap.Logger
}

// NewFirearmService creates a FirearmService.
//
// Precondition: dispatcher, broker and logger must be non-nil. store may be
// nil when weapon documents are created by the host itself.
func NewFirearmService(dispatcher *HookDispatcher, broker *PromptBroker, store WeaponStore, logger *zap.Logger) *FirearmService {
	return &FirearmService{
		dispatcher: dispatcher,
		broker:     broker,
		store:      store,
		logger:     logger,
	}
}

// Register attaches the service to srv.
func (s *FirearmService) Register(srv *grpc.Server) {
	srv.RegisterService(&FirearmServiceDesc, s)
}

// ItemCreated stores the new weapon, when a store is configured, and fires
// the item-created hooks.
func (s *FirearmService) ItemCreated(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	actor, err := decodeActor(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	item, err := decodeWeapon(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if item == nil || actor == nil {
		s.logger.Debug("item created without item or actor; ignored")
		return &emptypb.Empty{}, nil
	}
	if err := item.Validate(); err != nil {
		// Host items with formula or out-of-range uses are still classified;
		// only the stored charge document is skipped.
		s.logger.Warn("weapon not stored", zap.String("weapon_id", item.ID), zap.Error(err))
	} else if s.store != nil {
		err := s.store.Create(ctx, item, actor.ID)
		switch {
		case errors.Is(err, firearm.ErrWeaponExists):
			s.logger.Info("weapon already stored; re-running hooks", zap.String("weapon_id", item.ID))
		case err != nil:
			return nil, status.Errorf(codes.Internal, "storing weapon %q: %v", item.ID, err)
		}
	}
	if err := s.dispatcher.FireItemCreated(ctx, item, actor); err != nil {
		return nil, status.Errorf(codes.Internal, "item created hooks: %v", err)
	}
	return &emptypb.Empty{}, nil
}

// PreAttackRoll fires the pre-attack hooks and returns whether the roll may
// proceed. A hook failure is reported as Internal; the host must treat any
// error as a suppressed roll.
func (s *FirearmService) PreAttackRoll(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	attempt, err := decodeAttempt(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ok, err := s.dispatcher.FirePreAttackRoll(ctx, attempt)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "pre-attack hooks: %v", err)
	}
	return wrapperspb.Bool(ok), nil
}

// ListPrompts returns the reload prompts waiting for an answer.
func (s *FirearmService) ListPrompts(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := encodePrompts(s.broker.Pending())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding prompts: %v", err)
	}
	return out, nil
}

// ResolvePrompt answers one prompt. An empty choice dismisses it.
func (s *FirearmService) ResolvePrompt(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	id := str(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id must not be empty")
	}
	err := s.broker.Resolve(id, str(req, "choice"))
	switch {
	case errors.Is(err, ErrPromptNotFound):
		return nil, status.Errorf(codes.NotFound, "prompt %q not found", id)
	case errors.Is(err, ErrInvalidChoice):
		return nil, status.Errorf(codes.InvalidArgument, "choice %q not offered", str(req, "choice"))
	case err != nil:
		return nil, status.Errorf(codes.Internal, "resolving prompt: %v", err)
	}
	return &emptypb.Empty{}, nil
}

func itemCreatedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FirearmServiceServer).ItemCreated(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodItemCreated}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FirearmServiceServer).ItemCreated(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func preAttackRollHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FirearmServiceServer).PreAttackRoll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPreAttackRoll}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FirearmServiceServer).PreAttackRoll(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listPromptsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FirearmServiceServer).ListPrompts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListPrompts}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FirearmServiceServer).ListPrompts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func resolvePromptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FirearmServiceServer).ResolvePrompt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodResolvePrompt}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FirearmServiceServer).ResolvePrompt(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FirearmServiceDesc describes the firearm service. The messages are
// well-known protobuf types, so no generated code is needed.
var FirearmServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FirearmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ItemCreated", Handler: itemCreatedHandler},
		{MethodName: "PreAttackRoll", Handler: preAttackRollHandler},
		{MethodName: "ListPrompts", Handler: listPromptsHandler},
		{MethodName: "ResolvePrompt", Handler: resolvePromptHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "firearm/v1/firearm.proto",
}
