package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/scripting"
)

func TestNewSandboxedState_BlocksHostAccess(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"os", "io", "debug", "package", "dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "%s should not be reachable", name)
	}
}

func TestNewSandboxedState_RuleScriptLibraries(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	require.NoError(t, L.DoString(`
		local outcomes = {"fouled", "cracked"}
		table.sort(outcomes)
		assert(outcomes[1] == "cracked")
		assert(string.format("%s:%d", "Musket", math.max(1, 3)) == "Musket:3")
	`))
}
