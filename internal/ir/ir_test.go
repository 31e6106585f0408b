package ir

import (
	"strings"
	"testing"
)

// buildAdd constructs: define i32 @add(i32 %a, i32 %b) { entry: %s = add; ret }
func buildAdd(t *testing.T) (*Module, *Func) {
	t.Helper()
	m := NewModule("add.c")
	bt := m.Types.Builtins()
	sig := m.Types.Func(bt.I32, false, bt.I32, bt.I32)
	f, err := m.AddFunc("add", sig, "a", "b")
	if err != nil {
		t.Fatalf("AddFunc: %v", err)
	}
	b := NewBuilder(m)
	entry := f.NewBlock("entry")
	sum := b.Binary(OpAdd, "s", ParamOf(f, 0), ParamOf(f, 1))
	entry.Append(sum, b.Ret(ValueOf(sum)))
	return m, f
}

func TestValidateAcceptsWellFormedFunction(t *testing.T) {
	m, _ := buildAdd(t)
	if err := Validate(m); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateReportsUnterminatedBlock(t *testing.T) {
	m, f := buildAdd(t)
	f.NewBlock("dangling")
	err := Validate(m)
	if err == nil {
		t.Fatal("expected error for unterminated block")
	}
	if !strings.Contains(err.Error(), "dangling: unterminated block") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsPhiAfterNonPhi(t *testing.T) {
	m, f := buildAdd(t)
	b := NewBuilder(m)
	entry := f.Blocks[0]
	phi := b.Phi("p", m.Types.Builtins().I32, PhiIncoming{Value: IntConst(m.Types.Builtins().I32, 1), Block: 0})
	if err := entry.InsertBefore(entry.Terminator(), phi); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	if err := Validate(m); err == nil || !strings.Contains(err.Error(), "phi after a non-phi") {
		t.Fatalf("expected phi placement error, got %v", err)
	}
}

func TestLandingPadStaysAtBlockHead(t *testing.T) {
	newPad := func(m *Module) *Instr {
		bt := m.Types.Builtins()
		return &Instr{Op: OpLandingPad, Type: m.Types.Struct(false, bt.Ptr, bt.I32), Pad: LandingPadInstr{Cleanup: true}}
	}

	m, f := buildAdd(t)
	entry := f.Blocks[0]
	add := entry.Instrs[0]
	pad := newPad(m)
	if err := entry.InsertBefore(add, pad); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	if err := Validate(m); err != nil {
		t.Fatalf("landing pad at the head is valid: %v", err)
	}
	if entry.FirstNonPhi() != pad || entry.FirstInsertionPoint() != add {
		t.Fatalf("head = %s, insertion point = %s", entry.FirstNonPhi().Op, entry.FirstInsertionPoint().Op)
	}

	m, f = buildAdd(t)
	entry = f.Blocks[0]
	if err := entry.InsertBefore(entry.Terminator(), newPad(m)); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	if err := Validate(m); err == nil || !strings.Contains(err.Error(), "not the first non-phi") {
		t.Fatalf("expected landing pad placement error, got %v", err)
	}
}

func TestInsertBeforeKeepsOrder(t *testing.T) {
	m, f := buildAdd(t)
	b := NewBuilder(m)
	entry := f.Blocks[0]
	ret := entry.Terminator()
	slot := b.Alloca("", m.Types.Builtins().I32)
	st := b.Store(ValueOf(entry.Instrs[0]), ValueOf(slot))
	if err := entry.InsertBefore(ret, slot, st); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	want := []Opcode{OpAdd, OpAlloca, OpStore, OpRet}
	if len(entry.Instrs) != len(want) {
		t.Fatalf("len = %d, want %d", len(entry.Instrs), len(want))
	}
	for i, op := range want {
		if entry.Instrs[i].Op != op {
			t.Errorf("instr %d = %s, want %s", i, entry.Instrs[i].Op, op)
		}
		if entry.Instrs[i].Parent != entry {
			t.Errorf("instr %d has wrong parent", i)
		}
	}
	if err := entry.InsertBefore(&Instr{Op: OpRet}, slot); err == nil {
		t.Fatal("expected error for foreign insertion point")
	}
}

func TestGetOrInsertFunction(t *testing.T) {
	m := NewModule("m")
	bt := m.Types.Builtins()
	sig := m.Types.Func(bt.Void, false, bt.I32, bt.Ptr)
	f1, err := m.GetOrInsertFunction("trace", sig)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	f2, err := m.GetOrInsertFunction("trace", sig)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if f1 != f2 {
		t.Fatal("expected the same declaration")
	}
	if len(m.Funcs) != 1 || !f1.IsDeclaration() {
		t.Fatalf("expected one declaration, got %d funcs", len(m.Funcs))
	}
	other := m.Types.Func(bt.I32, false)
	if _, err := m.GetOrInsertFunction("trace", other); err == nil {
		t.Fatal("expected signature clash error")
	}
}

func TestPrintFunction(t *testing.T) {
	m, f := buildAdd(t)
	m.Triple = "x86_64-unknown-linux-gnu"
	f.Blocks[0].Instrs[0].Meta = Meta{Indexed: true, Index: 7}
	out := m.String()
	for _, want := range []string{
		`target triple = "x86_64-unknown-linux-gnu"`,
		"define i32 @add(i32 %a, i32 %b) {",
		"entry:",
		"  %s = add i32 %a, %b, !index 7",
		"  ret i32 %s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintNumbersUnnamedValues(t *testing.T) {
	m := NewModule("")
	bt := m.Types.Builtins()
	f, err := m.AddFunc("f", m.Types.Func(bt.Void, false, bt.I8))
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(m)
	bb := f.NewBlock("")
	slot := b.Alloca("", bt.I8)
	bb.Append(slot, b.Store(ParamOf(f, 0), ValueOf(slot)), b.RetVoid())
	out := m.String()
	for _, want := range []string{
		"define void @f(i8 %0) {",
		"bb0:",
		"  %1 = alloca i8",
		"  store i8 %0, ptr %1",
		"  ret void",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEscapeBytes(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{CString("add"), `"add\00"`},
		{[]byte(`a"b`), `"a\22b"`},
		{[]byte("x\n"), `"x\0A"`},
	}
	for _, tt := range tests {
		if got := escapeBytes(tt.in); got != tt.want {
			t.Errorf("escapeBytes(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestOpcodeLookup(t *testing.T) {
	for op := OpRet; op < opCount; op++ {
		got, ok := LookupOpcode(op.String())
		if !ok || got != op {
			t.Errorf("LookupOpcode(%q) = %v, %v", op.String(), got, ok)
		}
	}
	if _, ok := LookupOpcode("frobnicate"); ok {
		t.Error("unknown opcode resolved")
	}
}
