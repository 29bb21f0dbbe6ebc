package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable creates a read-only platform table and injects it into the Lua state as a global.
// This should be called before loading any user configuration code.
// The report may be nil, in which case the distro field is nil.
func InjectPlatformTable(L *lua.LState, key Key, report *Report) error {
	platformTable := L.NewTable()

	L.SetField(platformTable, "os", lua.LString(key.OS))
	L.SetField(platformTable, "arch", lua.LString(key.Arch))
	L.SetField(platformTable, "key", lua.LString(key.String()))
	if key.Libc != LibcNone {
		L.SetField(platformTable, "libc", lua.LString(key.Libc))
	} else {
		L.SetField(platformTable, "libc", lua.LNil)
	}

	// OS booleans
	L.SetField(platformTable, "is_linux", lua.LBool(key.IsLinux()))
	L.SetField(platformTable, "is_macos", lua.LBool(key.IsMacOS()))
	L.SetField(platformTable, "is_windows", lua.LBool(key.IsWindows()))
	L.SetField(platformTable, "is_musl", lua.LBool(key.IsMusl()))
	L.SetField(platformTable, "is_apple_silicon", lua.LBool(key.IsAppleSilicon()))

	// Linux distribution (nil on non-Linux or when undetected)
	if key.IsLinux() && report != nil && report.Platform != "" {
		distroTable := L.NewTable()
		L.SetField(distroTable, "id", lua.LString(report.Platform))
		L.SetField(distroTable, "family", lua.LString(report.Family))
		L.SetField(distroTable, "version", lua.LString(report.Version))
		L.SetField(platformTable, "distro", distroTable)
	} else {
		L.SetField(platformTable, "distro", lua.LNil)
	}

	// Helper function: when(condition, value)
	// Returns value if condition is true, nil otherwise
	whenFunc := L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})
	L.SetField(platformTable, "when", whenFunc)

	L.SetGlobal("platform", makeReadOnly(L, platformTable))

	return nil
}

// makeReadOnly makes a Lua table read-only by creating a proxy table with a metatable.
// The proxy redirects reads to the original table but prevents all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()

	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)

	return proxy
}
