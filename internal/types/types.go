package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of IR types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindLabel
	KindInt
	KindFloat
	KindPointer
	KindArray
	KindStruct
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindLabel:
		return "label"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Float widths understood by the IR. Width80 is x86_fp80.
const (
	Width16  uint32 = 16
	Width32  uint32 = 32
	Width64  uint32 = 64
	Width80  uint32 = 80
	Width128 uint32 = 128
)

// MaxIntWidth is the widest integer type the IR accepts (LLVM's limit).
const MaxIntWidth uint32 = 1<<23 - 1

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind  Kind
	Elem  TypeID // array element
	Count uint64 // array length
	Width uint32 // bit width for ints and floats
	// Payload indexes the struct/func side tables.
	Payload uint32
}

// StructInfo lists the fields of a literal struct type.
type StructInfo struct {
	Fields []TypeID
	Packed bool
}

// FuncInfo describes a function signature.
type FuncInfo struct {
	Result   TypeID
	Params   []TypeID
	Variadic bool
}

// MakeInt returns an integer descriptor of the given bit width.
func MakeInt(width uint32) Type { return Type{Kind: KindInt, Width: width} }

// MakeFloat returns a floating point descriptor of the given bit width.
func MakeFloat(width uint32) Type { return Type{Kind: KindFloat, Width: width} }

// MakeArray returns a fixed-length array descriptor.
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}
