package firearm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// announcer sends the banner and chat entry that accompany every reload
// choice and misfire. Both are side effects: a chat failure is logged and
// never changes the verdict.
type announcer struct {
	notifier host.Notifier
	chat     host.ChatLog
	logger   *zap.Logger
}

func (a announcer) announce(ctx context.Context, level host.Level, actor *Actor, w *Weapon, notice, chatText string) {
	a.notifier.Notify(ctx, level, notice)
	err := a.chat.PostMessage(ctx, host.ChatMessage{
		Speaker:   actor.Name,
		SpeakerID: actor.ID,
		Content:   chatText,
		Img:       w.Img,
	})
	if err != nil {
		a.logger.Warn("posting chat message",
			zap.String("weapon_id", w.ID),
			zap.String("actor", actor.Name),
			zap.Error(err),
		)
	}
}

func reloadedText(actor *Actor, w *Weapon) string {
	return fmt.Sprintf("%s has reloaded their %s.", actor.Name, w.Name)
}

func declinedNotice(actor *Actor) string {
	return fmt.Sprintf("%s chose not to reload.", actor.Name)
}

func declinedChat(actor *Actor, w *Weapon) string {
	return fmt.Sprintf("%s has decided not to reload their %s.", actor.Name, w.Name)
}

func fouledText(actor *Actor, w *Weapon) string {
	return fmt.Sprintf("%s's %s misfires! The barrel must be cleared.", actor.Name, w.Name)
}

func crackedText(actor *Actor, w *Weapon) string {
	return fmt.Sprintf("%s's %s misfires catastrophically! The barrel has cracked.", actor.Name, w.Name)
}
