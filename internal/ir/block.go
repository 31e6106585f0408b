package ir

import (
	"fmt"
	"slices"
)

// BlockID indexes Func.Blocks.
type BlockID int32

// NoBlockID marks an absent block reference.
const NoBlockID BlockID = -1

// Block is a basic block: a straight-line run of instructions ending with a terminator.
type Block struct {
	ID     BlockID
	Name   string
	Instrs []*Instr
	Parent *Func
}

// Terminator returns the final instruction when it is a terminator.
func (b *Block) Terminator() *Instr {
	if b == nil || len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Terminated reports whether the block ends with a terminator.
func (b *Block) Terminated() bool {
	return b.Terminator() != nil
}

// IndexOf returns the position of in inside the block or -1.
func (b *Block) IndexOf(in *Instr) int {
	if b == nil {
		return -1
	}
	return slices.Index(b.Instrs, in)
}

// FirstNonPhi returns the first instruction that is not a phi node.
func (b *Block) FirstNonPhi() *Instr {
	if b == nil {
		return nil
	}
	for _, in := range b.Instrs {
		if in.Op != OpPhi {
			return in
		}
	}
	return nil
}

// FirstInsertionPoint returns the first instruction new code may precede:
// phi nodes and a landing pad stay at the head of the block.
func (b *Block) FirstInsertionPoint() *Instr {
	if b == nil {
		return nil
	}
	for _, in := range b.Instrs {
		if in.Op != OpPhi && in.Op != OpLandingPad {
			return in
		}
	}
	return nil
}

// Append adds instructions at the end of the block.
func (b *Block) Append(ins ...*Instr) {
	for _, in := range ins {
		in.Parent = b
	}
	b.Instrs = append(b.Instrs, ins...)
}

// InsertBefore places ins, in order, immediately before at.
func (b *Block) InsertBefore(at *Instr, ins ...*Instr) error {
	pos := b.IndexOf(at)
	if pos < 0 {
		return fmt.Errorf("insertion point is not in block %s", b.Label())
	}
	for _, in := range ins {
		in.Parent = b
	}
	b.Instrs = slices.Insert(b.Instrs, pos, ins...)
	return nil
}

// Label returns the block name, or a positional name for anonymous blocks.
func (b *Block) Label() string {
	if b == nil {
		return "<nil>"
	}
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("bb%d", b.ID)
}
