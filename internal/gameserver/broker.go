package gameserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// ErrPromptNotFound is returned by Resolve for an unknown or already resolved prompt.
var ErrPromptNotFound = errors.New("prompt not found")

// ErrInvalidChoice is returned by Resolve when the choice key is not offered.
var ErrInvalidChoice = errors.New("choice not offered by prompt")

// Prompt is a reload dialog waiting for the operator.
type Prompt struct {
	ID        string
	Request   host.DialogRequest
	CreatedAt time.Time
}

type answer struct {
	choice    string
	dismissed bool
}

type pendingPrompt struct {
	prompt Prompt
	reply  chan answer
}

// PromptBroker is the server-side host.Dialog. ShowChoiceDialog parks the
// calling attack request until a client answers through Resolve, the prompt
// times out, or the request context ends.
type PromptBroker struct {
	mu      sync.Mutex
	pending map[string]*pendingPrompt
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewPromptBroker creates a PromptBroker. A zero timeout waits on ctx alone.
//
// Precondition: logger must be non-nil; timeout must be >= 0.
func NewPromptBroker(timeout time.Duration, logger *zap.Logger) *PromptBroker {
	return &PromptBroker{
		pending: make(map[string]*pendingPrompt),
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// ShowChoiceDialog implements host.Dialog.
//
// Postcondition: returns the chosen key, or host.ErrDismissed when the prompt
// was dismissed, timed out, or ctx ended first. The prompt is no longer
// pending on return.
func (b *PromptBroker) ShowChoiceDialog(ctx context.Context, req host.DialogRequest) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	p := &pendingPrompt{
		prompt: Prompt{ID: uuid.NewString(), Request: req, CreatedAt: b.now()},
		reply:  make(chan answer, 1),
	}
	b.mu.Lock()
	b.pending[p.prompt.ID] = p
	b.mu.Unlock()
	b.logger.Info("prompt opened", zap.String("prompt_id", p.prompt.ID), zap.String("title", req.Title))

	var a answer
	select {
	case a = <-p.reply:
	case <-ctx.Done():
		if b.remove(p.prompt.ID) {
			b.logger.Info("prompt abandoned",
				zap.String("prompt_id", p.prompt.ID),
				zap.Error(ctx.Err()),
			)
			return "", host.ErrDismissed
		}
		// Resolve claimed the prompt before the deadline won; its answer
		// has been reported to the operator and is on its way.
		a = <-p.reply
	}
	if a.dismissed {
		return "", host.ErrDismissed
	}
	return a.choice, nil
}

// Pending returns the open prompts, oldest first.
func (b *PromptBroker) Pending() []Prompt {
	b.mu.Lock()
	out := make([]Prompt, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.prompt)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Resolve answers prompt id. An empty choice dismisses it.
//
// Postcondition: on success the waiting ShowChoiceDialog returns; on error the
// prompt is left as it was.
func (b *PromptBroker) Resolve(id, choice string) error {
	p, err := b.claim(id, choice)
	if err != nil {
		return err
	}
	p.reply <- answer{choice: choice, dismissed: choice == ""}
	b.logger.Info("prompt resolved",
		zap.String("prompt_id", id),
		zap.String("choice", choice),
	)
	return nil
}

// claim takes id out of pending once choice is known to be valid. After a
// successful claim the waiting ShowChoiceDialog only returns through reply.
func (b *PromptBroker) claim(id, choice string) (*pendingPrompt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[id]
	if !ok {
		return nil, ErrPromptNotFound
	}
	if choice != "" && !p.prompt.Request.HasChoice(choice) {
		return nil, ErrInvalidChoice
	}
	delete(b.pending, id)
	return p, nil
}

// remove drops id and reports whether it was still pending.
func (b *PromptBroker) remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[id]
	delete(b.pending, id)
	return ok
}
