package firearm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// Reload dialog choice keys.
const (
	ChoiceReload  = "yes"
	ChoiceDecline = "no"
)

// ReloadDecision is the outcome of one reload prompt.
type ReloadDecision struct {
	Reloaded bool
}

// ReloadInteraction asks the operator whether to reload an empty weapon.
//
// Every prompt ends in exactly one of two branches. Dismissal, an unknown
// choice key, a dialog error, or cancellation of ctx all count as decline, so
// the caller always gets a decision back.
type ReloadInteraction struct {
	dialog  host.Dialog
	charges *ChargeTracker
	out     announcer
}

// NewReloadInteraction creates a ReloadInteraction.
//
// Precondition: all arguments must be non-nil.
func NewReloadInteraction(dialog host.Dialog, charges *ChargeTracker, notifier host.Notifier, chat host.ChatLog, logger *zap.Logger) *ReloadInteraction {
	return &ReloadInteraction{
		dialog:  dialog,
		charges: charges,
		out:     announcer{notifier: notifier, chat: chat, logger: logger},
	}
}

// Request builds the dialog shown for w.
func (ri *ReloadInteraction) Request(w *Weapon) host.DialogRequest {
	return host.DialogRequest{
		Title: "Reload Required",
		Body:  fmt.Sprintf("Your %s is out of ammo. Do you want to reload?", w.Name),
		Choices: []host.Choice{
			{Key: ChoiceReload, Label: "Yes, Reload"},
			{Key: ChoiceDecline, Label: "No, Cancel"},
		},
		Default: ChoiceReload,
	}
}

// Prompt shows the reload dialog and blocks until it resolves.
//
// Precondition: actor and w must be non-nil.
// Postcondition: on reload w.CurrentCharge == w.MaxCharge; an error is
// returned only when persisting the reload fails.
func (ri *ReloadInteraction) Prompt(ctx context.Context, actor *Actor, w *Weapon) (ReloadDecision, error) {
	choice, err := ri.dialog.ShowChoiceDialog(ctx, ri.Request(w))
	if err != nil {
		if !errors.Is(err, host.ErrDismissed) {
			ri.out.logger.Warn("reload dialog failed; treating as decline",
				zap.String("weapon_id", w.ID),
				zap.Error(err),
			)
		}
		choice = ChoiceDecline
	}

	var decision ReloadDecision
	if choice == ChoiceReload {
		unlock := ri.charges.Lock(w.ID)
		err := ri.charges.Refresh(ctx, w)
		if err == nil {
			err = ri.charges.Reload(ctx, w)
		}
		unlock()
		if err != nil {
			return ReloadDecision{}, err
		}
		decision.Reloaded = true
	}

	if decision.Reloaded {
		ri.out.announce(ctx, host.LevelInfo, actor, w, reloadedText(actor, w), reloadedText(actor, w))
	} else {
		ri.out.announce(ctx, host.LevelInfo, actor, w, declinedNotice(actor), declinedChat(actor, w))
	}
	ri.out.logger.Info("reload prompt resolved",
		zap.String("weapon_id", w.ID),
		zap.String("actor", actor.Name),
		zap.Bool("reloaded", decision.Reloaded),
	)
	return decision, nil
}
