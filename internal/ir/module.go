package ir

import (
	"fmt"

	"faultline/internal/types"
)

// Global is a module-level variable.
type Global struct {
	Name     string
	Type     types.TypeID // value type; the symbol itself is a pointer
	Init     Const
	HasInit  bool
	Constant bool
}

// Module is a compilation unit.
type Module struct {
	Name       string
	Triple     string
	DataLayout string
	Types      *types.Interner
	Globals    []*Global
	Funcs      []*Func

	funcIndex map[string]*Func
}

// NewModule creates an empty module with its own type interner.
func NewModule(name string) *Module {
	return &Module{
		Name:      name,
		Types:     types.NewInterner(),
		funcIndex: make(map[string]*Func),
	}
}

// Func looks up a function by name.
func (m *Module) Func(name string) (*Func, bool) {
	if m == nil {
		return nil, false
	}
	if m.funcIndex == nil {
		m.reindex()
	}
	f, ok := m.funcIndex[name]
	return f, ok
}

func (m *Module) reindex() {
	m.funcIndex = make(map[string]*Func, len(m.Funcs))
	for _, f := range m.Funcs {
		m.funcIndex[f.Name] = f
	}
}

// AddFunc adds a function with the given signature.
// Redefining an existing name is an error.
func (m *Module) AddFunc(name string, sig types.TypeID, paramNames ...string) (*Func, error) {
	if _, exists := m.Func(name); exists {
		return nil, fmt.Errorf("function @%s already defined", name)
	}
	info, ok := m.Types.FuncInfo(sig)
	if !ok {
		return nil, fmt.Errorf("@%s: %s is not a function type", name, m.Types.String(sig))
	}
	f := &Func{Name: name, Sig: sig, Parent: m}
	f.Params = make([]Param, len(info.Params))
	for i, p := range info.Params {
		f.Params[i].Type = p
		if i < len(paramNames) {
			f.Params[i].Name = paramNames[i]
		}
	}
	m.Funcs = append(m.Funcs, f)
	m.funcIndex[name] = f
	return f, nil
}

// GetOrInsertFunction returns the function named name, declaring it with sig
// when absent. An existing function with another signature is an error.
func (m *Module) GetOrInsertFunction(name string, sig types.TypeID) (*Func, error) {
	if f, ok := m.Func(name); ok {
		if f.Sig != sig {
			return nil, fmt.Errorf("@%s already declared as %s, want %s",
				name, m.Types.String(f.Sig), m.Types.String(sig))
		}
		return f, nil
	}
	return m.AddFunc(name, sig)
}

// Global looks up a global variable by name.
func (m *Module) Global(name string) (*Global, bool) {
	for _, g := range m.Globals {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// AddGlobal appends a global variable.
func (m *Module) AddGlobal(g *Global) error {
	if _, exists := m.Global(g.Name); exists {
		return fmt.Errorf("global @%s already defined", g.Name)
	}
	m.Globals = append(m.Globals, g)
	return nil
}

// Definitions returns the functions that have a body, in module order.
func (m *Module) Definitions() []*Func {
	out := make([]*Func, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		if !f.IsDeclaration() {
			out = append(out, f)
		}
	}
	return out
}
