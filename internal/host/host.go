// Package host declares the contracts the firearm subsystem consumes from the
// virtual tabletop host: weapon document persistence, the notification banner,
// the chat log, and modal choice dialogs. Nothing here is implemented by the
// host's own code; adapters live in storage/postgres, gameserver, observability
// and host/memory.
package host

import (
	"context"
	"errors"
	"fmt"
)

// ErrDismissed is returned by a Dialog when the prompt was closed without a choice.
var ErrDismissed = errors.New("host: dialog dismissed")

// Documents is the persisted-field and flag contract for weapon documents.
//
// Implementations must make Update idempotent for identical values.
type Documents interface {
	// Update writes each field path in changes (e.g. "system.uses.value") onto
	// the weapon document identified by weaponID.
	Update(ctx context.Context, weaponID string, changes map[string]any) error
	// GetFlag reads a namespaced flag. ok is false when the flag was never
	// set, including when no document exists for weaponID: items the host
	// created before this service was attached are simply unflagged.
	GetFlag(ctx context.Context, weaponID, namespace, key string) (value any, ok bool, err error)
	// SetFlag writes a namespaced flag.
	SetFlag(ctx context.Context, weaponID, namespace, key string, value any) error
}

// FieldReader is implemented by Documents that can read persisted fields
// back. When available, the firearm resolver refreshes a weapon's charge from
// the store inside its per-weapon lock instead of trusting the event snapshot.
type FieldReader interface {
	// Fields returns the current values at paths. Paths that are not set are
	// absent from the result.
	Fields(ctx context.Context, weaponID string, paths ...string) (map[string]any, error)
}

// Level is the severity of a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// String returns "info", "warn", "error", or "unknown".
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts "info", "warn" or "error" into a Level.
//
// Postcondition: returns an error for any other input.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("host: unknown notification level %q", s)
	}
}

// Notifier shows a transient banner to the user. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// ChatMessage is one entry appended to the host chat log.
type ChatMessage struct {
	// Speaker is the display name the entry is attributed to.
	Speaker string
	// SpeakerID identifies the speaking actor; may be empty.
	SpeakerID string
	// Content is the plain message text.
	Content string
	// Img is an optional image reference for the item involved.
	Img string
}

// ChatLog appends messages to the host chat log.
type ChatLog interface {
	PostMessage(ctx context.Context, msg ChatMessage) error
}

// Choice is one button on a choice dialog.
type Choice struct {
	Key   string
	Label string
}

// DialogRequest describes a modal prompt.
type DialogRequest struct {
	Title   string
	Body    string
	Choices []Choice
	// Default is the key of the preselected choice.
	Default string
}

// HasChoice reports whether key names one of r.Choices.
func (r DialogRequest) HasChoice(key string) bool {
	for _, c := range r.Choices {
		if c.Key == key {
			return true
		}
	}
	return false
}

// Dialog presents a modal choice to the human operator and blocks until one
// choice is made, the prompt is dismissed (ErrDismissed), or ctx ends.
type Dialog interface {
	ShowChoiceDialog(ctx context.Context, req DialogRequest) (string, error)
}
