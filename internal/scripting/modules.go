package scripting

import lua "github.com/yuin/gopher-lua"

// RegisterModules registers the firearm.* Lua table into L:
//
//	firearm.roll(expr)  rolls a dice expression, returns the total
//	firearm.log(msg)    writes msg to the service log at info level
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: firearm global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(m.luaRoll))
	L.SetField(mod, "log", L.NewFunction(m.luaLog))
	L.SetGlobal("firearm", mod)
}

func (m *Manager) luaRoll(L *lua.LState) int {
	expr := L.CheckString(1)
	res, err := m.roller.RollExpr(expr)
	if err != nil {
		L.RaiseError("firearm.roll(%q): %s", expr, err.Error())
		return 0
	}
	L.Push(lua.LNumber(res.Total()))
	return 1
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("script: " + L.CheckString(1))
	return 0
}
