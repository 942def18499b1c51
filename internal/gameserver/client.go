package gameserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// FirearmClient calls FirearmService over a client connection.
type FirearmClient struct {
	cc grpc.ClientConnInterface
}

// NewFirearmClient wraps cc.
//
// Precondition: cc must be non-nil.
func NewFirearmClient(cc grpc.ClientConnInterface) *FirearmClient {
	return &FirearmClient{cc: cc}
}

// ItemCreated sends an item-created event.
func (c *FirearmClient) ItemCreated(ctx context.Context, payload map[string]any) error {
	in, err := structpb.NewStruct(payload)
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, MethodItemCreated, in, new(emptypb.Empty))
}

// PreAttackRoll sends a pre-attack event and reports whether the roll may proceed.
func (c *FirearmClient) PreAttackRoll(ctx context.Context, payload map[string]any) (bool, error) {
	in, err := structpb.NewStruct(payload)
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, MethodPreAttackRoll, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// ListPrompts returns the open reload prompts.
func (c *FirearmClient) ListPrompts(ctx context.Context) ([]Prompt, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListPrompts, new(emptypb.Empty), out); err != nil {
		return nil, err
	}
	return decodePrompts(out), nil
}

// ResolvePrompt answers prompt id. An empty choice dismisses it.
func (c *FirearmClient) ResolvePrompt(ctx context.Context, id, choice string) error {
	in, err := structpb.NewStruct(map[string]any{"id": id, "choice": choice})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, MethodResolvePrompt, in, new(emptypb.Empty))
}
