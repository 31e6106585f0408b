package types

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Label   TypeID
	I1      TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	Half    TypeID
	Float   TypeID
	Double  TypeID
	Ptr     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	shapes   map[string]TypeID // struct and func types, keyed by their spelling
	structs  []StructInfo
	funcs    []FuncInfo
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:  make(map[typeKey]TypeID, 64),
		shapes: make(map[string]TypeID, 16),
	}
	in.structs = append(in.structs, StructInfo{}) // reserve 0 as invalid sentinel
	in.funcs = append(in.funcs, FuncInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Label = in.Intern(Type{Kind: KindLabel})
	in.builtins.I1 = in.Intern(MakeInt(1))
	in.builtins.I8 = in.Intern(MakeInt(8))
	in.builtins.I16 = in.Intern(MakeInt(16))
	in.builtins.I32 = in.Intern(MakeInt(32))
	in.builtins.I64 = in.Intern(MakeInt(64))
	in.builtins.Half = in.Intern(MakeFloat(Width16))
	in.builtins.Float = in.Intern(MakeFloat(Width32))
	in.builtins.Double = in.Intern(MakeFloat(Width64))
	in.builtins.Ptr = in.Intern(Type{Kind: KindPointer})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided scalar, pointer or array descriptor has a stable TypeID.
// Struct and function types go through Struct and Func.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid || t.Kind == KindStruct || t.Kind == KindFunc {
		return NoTypeID
	}
	key := keyOf(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// Int interns an integer type of the given width.
func (in *Interner) Int(width uint32) TypeID {
	return in.Intern(MakeInt(width))
}

// Array interns [count x elem].
func (in *Interner) Array(elem TypeID, count uint64) TypeID {
	return in.Intern(MakeArray(elem, count))
}

// Struct interns a literal struct type.
func (in *Interner) Struct(packed bool, fields ...TypeID) TypeID {
	info := StructInfo{Fields: append([]TypeID(nil), fields...), Packed: packed}
	key := "s:" + in.structSpelling(info)
	if id, ok := in.shapes[key]; ok {
		return id
	}
	payload := mustUint32(len(in.structs))
	in.structs = append(in.structs, info)
	id := in.internRaw(Type{Kind: KindStruct, Payload: payload})
	in.shapes[key] = id
	return id
}

// Func interns a function signature type.
func (in *Interner) Func(result TypeID, variadic bool, params ...TypeID) TypeID {
	info := FuncInfo{Result: result, Params: append([]TypeID(nil), params...), Variadic: variadic}
	key := "f:" + in.funcSpelling(info)
	if id, ok := in.shapes[key]; ok {
		return id
	}
	payload := mustUint32(len(in.funcs))
	in.funcs = append(in.funcs, info)
	id := in.internRaw(Type{Kind: KindFunc, Payload: payload})
	in.shapes[key] = id
	return id
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	id := TypeID(mustUint32(len(in.types)))
	in.types = append(in.types, t)
	if t.Kind != KindStruct && t.Kind != KindFunc {
		in.index[keyOf(t)] = id
	}
	return id
}

func mustUint32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("types: table overflow: %w", err))
	}
	return v
}

// Len returns the number of TypeIDs issued, the invalid sentinel included.
func (in *Interner) Len() int {
	return len(in.types)
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// StructInfo returns the fields of a struct type.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct || int(tt.Payload) >= len(in.structs) {
		return nil, false
	}
	return &in.structs[tt.Payload], true
}

// FuncInfo returns the signature of a function type.
func (in *Interner) FuncInfo(id TypeID) (*FuncInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFunc || int(tt.Payload) >= len(in.funcs) {
		return nil, false
	}
	return &in.funcs[tt.Payload], true
}

// IsVoid reports whether id is the void type.
func (in *Interner) IsVoid(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindVoid
}

// IsFirstClass reports whether values of type id can be produced by instructions
// and stored to memory.
func (in *Interner) IsFirstClass(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindInt, KindFloat, KindPointer, KindArray, KindStruct:
		return true
	default:
		return false
	}
}

// String renders the type with the textual IR spelling.
func (in *Interner) String(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("<type#%d>", id)
	}
	switch tt.Kind {
	case KindVoid:
		return "void"
	case KindLabel:
		return "label"
	case KindInt:
		return "i" + strconv.FormatUint(uint64(tt.Width), 10)
	case KindFloat:
		return floatName(tt.Width)
	case KindPointer:
		return "ptr"
	case KindArray:
		return fmt.Sprintf("[%d x %s]", tt.Count, in.String(tt.Elem))
	case KindStruct:
		info, _ := in.StructInfo(id)
		if info == nil {
			return "{}"
		}
		return in.structSpelling(*info)
	case KindFunc:
		info, _ := in.FuncInfo(id)
		if info == nil {
			return "void ()"
		}
		return in.funcSpelling(*info)
	default:
		return tt.Kind.String()
	}
}

func floatName(width uint32) string {
	switch width {
	case Width16:
		return "half"
	case Width32:
		return "float"
	case Width64:
		return "double"
	case Width80:
		return "x86_fp80"
	case Width128:
		return "fp128"
	default:
		return fmt.Sprintf("f%d", width)
	}
}

// FloatWidth maps a float keyword to its width.
func FloatWidth(name string) (uint32, bool) {
	switch name {
	case "half":
		return Width16, true
	case "float":
		return Width32, true
	case "double":
		return Width64, true
	case "x86_fp80":
		return Width80, true
	case "fp128":
		return Width128, true
	default:
		return 0, false
	}
}

func (in *Interner) structSpelling(info StructInfo) string {
	parts := make([]string, 0, len(info.Fields))
	for _, f := range info.Fields {
		parts = append(parts, in.String(f))
	}
	body := "{ " + strings.Join(parts, ", ") + " }"
	if len(parts) == 0 {
		body = "{}"
	}
	if info.Packed {
		return "<" + body + ">"
	}
	return body
}

func (in *Interner) funcSpelling(info FuncInfo) string {
	parts := make([]string, 0, len(info.Params)+1)
	for _, p := range info.Params {
		parts = append(parts, in.String(p))
	}
	if info.Variadic {
		parts = append(parts, "...")
	}
	return in.String(info.Result) + " (" + strings.Join(parts, ", ") + ")"
}

type typeKey struct {
	Kind  Kind
	Elem  TypeID
	Count uint64
	Width uint32
}

func keyOf(t Type) typeKey {
	return typeKey{Kind: t.Kind, Elem: t.Elem, Count: t.Count, Width: t.Width}
}
