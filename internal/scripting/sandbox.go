// Package scripting runs table house-rule scripts in a sandboxed GopherLua VM.
// It has no dependency on host packages; the firearm rules reach scripts
// through MisfirePolicy and the firearm.* Lua module.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit caps opcodes per hook call when
// firearm.script_instruction_limit is unset.
const DefaultInstructionLimit = 100_000

// opcodeBudget cancels its embedded context once Done has been polled
// limit times. GopherLua polls Done once per opcode, so the budget is an
// exact instruction count for a single hook call.
type opcodeBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *opcodeBudget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// openers are the only standard libraries a house-rule script may use.
var openers = []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath}

// blockedGlobals are base-library functions that reach the filesystem or
// the loader.
var blockedGlobals = []string{"dofile", "loadfile", "load", "collectgarbage", "require"}

// NewSandboxedState returns a VM with base, table, string and math opened
// and blockedGlobals cleared. The caller owns it and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range openers {
		open(L)
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// limitState bounds the next call on L to limit opcodes and to the lifetime
// of parent. A limit of zero or less uses DefaultInstructionLimit. The
// returned cancel must be called when the call ends.
func limitState(parent context.Context, L *lua.LState, limit int) context.CancelFunc {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(parent)
	b := &opcodeBudget{Context: ctx, cancel: cancel}
	b.left.Store(int64(limit))
	L.SetContext(b)
	return cancel
}
