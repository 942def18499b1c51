// Package memory provides in-process implementations of the host contracts.
// They back the console simulator and the unit tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// ErrNotFound is returned when a weapon document does not exist.
var ErrNotFound = errors.New("memory: document not found")

type document struct {
	fields map[string]any
	flags  map[string]map[string]any
}

// Documents is a mutex-guarded map of weapon documents.
type Documents struct {
	mu   sync.Mutex
	docs map[string]*document

	// FailWith, when non-nil, is returned by every Update and SetFlag call.
	FailWith error
	// Writes counts successful Update and SetFlag calls.
	Writes int
}

// NewDocuments returns an empty document store.
func NewDocuments() *Documents {
	return &Documents{docs: make(map[string]*document)}
}

// Put creates or replaces the document for weaponID with a copy of fields.
func (d *Documents) Put(weaponID string, fields map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	d.docs[weaponID] = &document{fields: cp, flags: make(map[string]map[string]any)}
}

// Field returns the stored value at path on weaponID.
func (d *Documents) Field(weaponID, path string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[weaponID]
	if !ok {
		return nil, false
	}
	v, ok := doc.fields[path]
	return v, ok
}

// Update implements host.Documents.
func (d *Documents) Update(_ context.Context, weaponID string, changes map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return d.FailWith
	}
	doc, ok := d.docs[weaponID]
	if !ok {
		return fmt.Errorf("updating %q: %w", weaponID, ErrNotFound)
	}
	for k, v := range changes {
		doc.fields[k] = v
	}
	d.Writes++
	return nil
}

// Fields implements host.FieldReader.
func (d *Documents) Fields(_ context.Context, weaponID string, paths ...string) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[weaponID]
	if !ok {
		return nil, fmt.Errorf("reading %q: %w", weaponID, ErrNotFound)
	}
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		if v, ok := doc.fields[p]; ok {
			out[p] = v
		}
	}
	return out, nil
}

// GetFlag implements host.Documents. An unknown weaponID reads as unset.
func (d *Documents) GetFlag(_ context.Context, weaponID, namespace, key string) (any, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[weaponID]
	if !ok {
		return nil, false, nil
	}
	v, ok := doc.flags[namespace][key]
	return v, ok, nil
}

// SetFlag implements host.Documents.
func (d *Documents) SetFlag(_ context.Context, weaponID, namespace, key string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return d.FailWith
	}
	doc, ok := d.docs[weaponID]
	if !ok {
		return fmt.Errorf("setting flag on %q: %w", weaponID, ErrNotFound)
	}
	if doc.flags[namespace] == nil {
		doc.flags[namespace] = make(map[string]any)
	}
	doc.flags[namespace][key] = value
	d.Writes++
	return nil
}

// Notification is one recorded banner.
type Notification struct {
	Level   host.Level
	Message string
}

// Notifier records every notification it receives.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements host.Notifier.
func (n *Notifier) Notify(_ context.Context, level host.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Level: level, Message: message})
}

// Sent returns a copy of the recorded notifications in order.
func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// ChatLog records posted messages.
type ChatLog struct {
	mu       sync.Mutex
	messages []host.ChatMessage

	// FailWith, when non-nil, is returned by PostMessage.
	FailWith error
}

// PostMessage implements host.ChatLog.
func (c *ChatLog) PostMessage(_ context.Context, msg host.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the posted messages in order.
func (c *ChatLog) Messages() []host.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]host.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// ScriptedDialog answers every prompt with Choice, or with Err when set.
type ScriptedDialog struct {
	mu       sync.Mutex
	Choice   string
	Err      error
	requests []host.DialogRequest
}

// ShowChoiceDialog implements host.Dialog.
func (s *ScriptedDialog) ShowChoiceDialog(_ context.Context, req host.DialogRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Choice, nil
}

// Requests returns the prompts shown so far.
func (s *ScriptedDialog) Requests() []host.DialogRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]host.DialogRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
