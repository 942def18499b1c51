package gameserver

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// Event payloads arrive as google.protobuf.Struct in the host's document
// shape:
//
//	{
//	  "actor": {"id": "...", "name": "..."},
//	  "item":  {"id": "...", "name": "...", "img": "...",
//	            "system": {"rarity": "rare", "equipped": true,
//	                       "uses": {"value": 3, "max": 6}}},
//	  "roll":  {"total": 17, "disadvantage": false}
//	}
//
// A missing "actor" or "item" decodes to nil, which the firearm package
// treats as "not applicable".

func decodeActor(s *structpb.Struct) (*firearm.Actor, error) {
	obj := object(s, "actor")
	if obj == nil {
		return nil, nil
	}
	a := &firearm.Actor{ID: str(obj, "id"), Name: str(obj, "name")}
	if a.Name == "" {
		return nil, fmt.Errorf("actor.name must not be empty")
	}
	return a, nil
}

// decodeWeapon reads only what classification needs strictly: the item id.
// Charge fields are a snapshot the resolver refreshes and validates once the
// item is known to be a firearm, so a host formula such as "@prof" or an
// out-of-range value on a sword never blocks its roll; both read as 0.
func decodeWeapon(s *structpb.Struct) (*firearm.Weapon, error) {
	obj := object(s, "item")
	if obj == nil {
		return nil, nil
	}
	id := str(obj, "id")
	if id == "" {
		return nil, fmt.Errorf("item.id must not be empty")
	}
	sys := object(obj, "system")
	uses := object(sys, "uses")
	return &firearm.Weapon{
		ID:            id,
		Name:          str(obj, "name"),
		Img:           str(obj, "img"),
		Rarity:        firearm.Rarity(str(sys, "rarity")),
		CurrentCharge: snapshotInt(uses, "value"),
		MaxCharge:     snapshotInt(uses, "max"),
		Equipped:      boolean(sys, "equipped"),
	}, nil
}

func decodeAttempt(s *structpb.Struct) (firearm.FireAttempt, error) {
	actor, err := decodeActor(s)
	if err != nil {
		return firearm.FireAttempt{}, err
	}
	w, err := decodeWeapon(s)
	if err != nil {
		return firearm.FireAttempt{}, err
	}
	roll := object(s, "roll")
	total, err := integer(roll, "total")
	if err != nil {
		return firearm.FireAttempt{}, fmt.Errorf("roll.total: %w", err)
	}
	return firearm.FireAttempt{
		Actor:           actor,
		Weapon:          w,
		AttackRollTotal: total,
		HasDisadvantage: boolean(roll, "disadvantage"),
	}, nil
}

func encodePrompts(prompts []Prompt) (*structpb.Struct, error) {
	list := make([]any, 0, len(prompts))
	for _, p := range prompts {
		list = append(list, encodePrompt(p))
	}
	return structpb.NewStruct(map[string]any{"prompts": list})
}

func encodePrompt(p Prompt) map[string]any {
	choices := make([]any, 0, len(p.Request.Choices))
	for _, c := range p.Request.Choices {
		choices = append(choices, map[string]any{"key": c.Key, "label": c.Label})
	}
	return map[string]any{
		"id":         p.ID,
		"title":      p.Request.Title,
		"body":       p.Request.Body,
		"default":    p.Request.Default,
		"choices":    choices,
		"created_at": p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// decodePrompts is the client-side inverse of encodePrompts.
func decodePrompts(s *structpb.Struct) []Prompt {
	v, ok := s.GetFields()["prompts"]
	if !ok {
		return nil
	}
	var out []Prompt
	for _, item := range v.GetListValue().GetValues() {
		obj := item.GetStructValue()
		p := Prompt{
			ID: str(obj, "id"),
			Request: host.DialogRequest{
				Title:   str(obj, "title"),
				Body:    str(obj, "body"),
				Default: str(obj, "default"),
			},
		}
		for _, c := range obj.GetFields()["choices"].GetListValue().GetValues() {
			co := c.GetStructValue()
			p.Request.Choices = append(p.Request.Choices, host.Choice{Key: str(co, "key"), Label: str(co, "label")})
		}
		out = append(out, p)
	}
	return out
}

func object(s *structpb.Struct, key string) *structpb.Struct {
	if s == nil {
		return nil
	}
	return s.GetFields()[key].GetStructValue()
}

func str(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func boolean(s *structpb.Struct, key string) bool {
	if s == nil {
		return false
	}
	return s.GetFields()[key].GetBoolValue()
}

// snapshotInt is integer without the error: anything that is not a whole
// number reads as 0.
func snapshotInt(s *structpb.Struct, key string) int {
	n, err := integer(s, key)
	if err != nil {
		return 0
	}
	return n
}

// integer reads a whole number. Missing values read as 0.
func integer(s *structpb.Struct, key string) (int, error) {
	if s == nil {
		return 0, nil
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, fmt.Errorf("expected a number")
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("expected a whole number, got %v", f)
	}
	return int(f), nil
}
