package ir

import (
	"fmt"

	"faultline/internal/types"
)

// Param is a formal parameter of a function.
type Param struct {
	Name string
	Type types.TypeID
}

// Func is a function definition or, when it has no blocks, a declaration.
type Func struct {
	Name   string
	Sig    types.TypeID // function type
	Params []Param
	Blocks []*Block
	Parent *Module

	// Personality names the exception personality routine, if any.
	Personality string
}

// IsDeclaration reports whether the function has no body.
func (f *Func) IsDeclaration() bool {
	return f == nil || len(f.Blocks) == 0
}

// Result returns the declared result type.
func (f *Func) Result() types.TypeID {
	if f == nil || f.Parent == nil {
		return types.NoTypeID
	}
	info, ok := f.Parent.Types.FuncInfo(f.Sig)
	if !ok {
		return types.NoTypeID
	}
	return info.Result
}

// NewBlock appends an empty block to the function.
func (f *Func) NewBlock(name string) *Block {
	b := &Block{
		ID:     BlockID(len(f.Blocks)),
		Name:   name,
		Parent: f,
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Block returns the block with the given id.
func (f *Func) Block(id BlockID) (*Block, bool) {
	if f == nil || id < 0 || int(id) >= len(f.Blocks) {
		return nil, false
	}
	return f.Blocks[id], true
}

// BlockByName finds a block by its label.
func (f *Func) BlockByName(name string) (*Block, bool) {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Instructions returns every instruction of the function in program order.
func (f *Func) Instructions() []*Instr {
	var out []*Instr
	for _, b := range f.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// InstrCount returns the number of instructions in the body.
func (f *Func) InstrCount() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

func (f *Func) String() string {
	if f == nil {
		return "<nil func>"
	}
	return fmt.Sprintf("@%s", f.Name)
}
