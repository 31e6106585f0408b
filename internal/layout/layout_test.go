package layout

import (
	"errors"
	"testing"

	"faultline/internal/types"
)

func TestTypeSizeInBits(t *testing.T) {
	in := types.NewInterner()
	bt := in.Builtins()
	e := New(X86_64LinuxGNU(), in)

	tests := []struct {
		name  string
		ty    types.TypeID
		bits  uint64
		store uint64
		alloc uint64
	}{
		{"i1", bt.I1, 1, 1, 1},
		{"i6", in.Int(6), 6, 1, 1},
		{"i32", bt.I32, 32, 4, 4},
		{"i64", bt.I64, 64, 8, 8},
		{"double", bt.Double, 64, 8, 8},
		{"x86_fp80", in.Intern(types.MakeFloat(types.Width80)), 80, 10, 16},
		{"ptr", bt.Ptr, 64, 8, 8},
		{"[4 x i8]", in.Array(bt.I8, 4), 32, 4, 4},
		{"{ i32, i8 }", in.Struct(false, bt.I32, bt.I8), 64, 8, 8},
		{"<{ i8, i32 }>", in.Struct(true, bt.I8, bt.I32), 40, 5, 5},
		{"[2 x { i64, i8 }]", in.Array(in.Struct(false, bt.I64, bt.I8), 2), 256, 32, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := e.LayoutOf(tt.ty)
			if err != nil {
				t.Fatalf("LayoutOf: %v", err)
			}
			if l.SizeInBits != tt.bits || l.StoreSize != tt.store || l.AllocSize != tt.alloc {
				t.Fatalf("got bits=%d store=%d alloc=%d, want %d/%d/%d",
					l.SizeInBits, l.StoreSize, l.AllocSize, tt.bits, tt.store, tt.alloc)
			}
		})
	}
}

func TestFieldOffsets(t *testing.T) {
	in := types.NewInterner()
	bt := in.Builtins()
	e := New(X86_64LinuxGNU(), in)
	st := in.Struct(false, bt.I8, bt.I64, bt.I16)
	want := []uint64{0, 8, 16}
	for i, w := range want {
		got, err := e.FieldOffset(st, i)
		if err != nil {
			t.Fatalf("FieldOffset: %v", err)
		}
		if got != w {
			t.Errorf("field %d offset = %d, want %d", i, got, w)
		}
	}
}

func TestUnsizedTypes(t *testing.T) {
	in := types.NewInterner()
	bt := in.Builtins()
	e := New(X86_64LinuxGNU(), in)
	for _, ty := range []types.TypeID{bt.Void, bt.Label, in.Func(bt.Void, false)} {
		_, err := e.TypeSizeInBits(ty)
		var le *LayoutError
		if !errors.As(err, &le) || le.Kind != LayoutErrUnsized {
			t.Errorf("%s: expected unsized error, got %v", in.String(ty), err)
		}
	}
}

func TestByteSize(t *testing.T) {
	tests := []struct{ bits, want uint64 }{
		{0, 0}, {1, 1}, {8, 1}, {9, 2}, {32, 4}, {80, 10},
	}
	for _, tt := range tests {
		if got := ByteSize(tt.bits); got != tt.want {
			t.Errorf("ByteSize(%d) = %d, want %d", tt.bits, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	in := types.NewInterner()
	bt := in.Builtins()

	t32, err := Resolve("i686-pc-linux-gnu", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if bits, _ := New(t32, in).TypeSizeInBits(bt.Ptr); bits != 32 {
		t.Errorf("i686 pointer = %d bits, want 32", bits)
	}

	custom, err := Resolve("", "E-p:16:16-i64:64")
	if err != nil {
		t.Fatalf("Resolve custom: %v", err)
	}
	if !custom.BigEndian || custom.PtrSize != 2 {
		t.Errorf("unexpected custom target %+v", custom)
	}
	if a, _ := New(custom, in).AlignOf(bt.I64); a != 8 {
		t.Errorf("i64 align = %d, want 8", a)
	}

	var le *LayoutError
	if _, err := Resolve("", ""); !errors.As(err, &le) || le.Kind != LayoutErrMissingTarget {
		t.Errorf("expected missing target, got %v", err)
	}
	if _, err := Resolve("z80-unknown", ""); !errors.As(err, &le) || le.Kind != LayoutErrMissingTarget {
		t.Errorf("expected missing target for unknown arch, got %v", err)
	}
	if _, err := ParseDataLayout("e-p:64"); !errors.As(err, &le) || le.Kind != LayoutErrBadDataLayout {
		t.Errorf("expected bad datalayout, got %v", err)
	}
}

func TestIntAlignFallsBackToLargerWidth(t *testing.T) {
	tgt, err := ParseDataLayout("e")
	if err != nil {
		t.Fatal(err)
	}
	if got := tgt.intABIAlign(24); got != 4 {
		t.Errorf("i24 align = %d, want 4", got)
	}
	if got := tgt.intABIAlign(256); got != 4 {
		t.Errorf("i256 align = %d, want 4 (largest listed)", got)
	}
}
