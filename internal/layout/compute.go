package layout

import (
	"math/bits"

	"faultline/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID) (TypeLayout, *LayoutError) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	switch tt.Kind {
	case types.KindInt:
		return scalarLayout(uint64(tt.Width), e.Target.intABIAlign(tt.Width)), nil

	case types.KindFloat:
		return scalarLayout(uint64(tt.Width), e.Target.floatABIAlign(tt.Width)), nil

	case types.KindPointer:
		return e.ptrLayout(), nil

	case types.KindArray:
		return e.arrayLayout(id, tt)

	case types.KindStruct:
		return e.structLayout(id)

	case types.KindVoid, types.KindLabel, types.KindFunc:
		return TypeLayout{Align: 1}, e.unsized(id)

	default:
		return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
}

func (e *LayoutEngine) unsized(id types.TypeID) *LayoutError {
	return &LayoutError{Kind: LayoutErrUnsized, Type: id, Spelling: e.Types.String(id)}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	size := uint64(ptrSize)
	return TypeLayout{SizeInBits: size * 8, StoreSize: size, AllocSize: size, Align: ptrAlign}
}

func scalarLayout(sizeInBits uint64, align int) TypeLayout {
	if align <= 0 {
		align = 1
	}
	store := ByteSize(sizeInBits)
	return TypeLayout{
		SizeInBits: sizeInBits,
		StoreSize:  store,
		AllocSize:  roundUp(store, align),
		Align:      align,
	}
}

func roundUp(n uint64, align int) uint64 {
	if align <= 1 {
		return n
	}
	a := uint64(align)
	r := n % a
	if r == 0 {
		return n
	}
	return n + (a - r)
}

func (e *LayoutEngine) arrayLayout(id types.TypeID, tt types.Type) (TypeLayout, *LayoutError) {
	elem, err := e.layoutOf(tt.Elem)
	if err != nil {
		return TypeLayout{Align: 1}, err
	}
	hi, size := bits.Mul64(elem.AllocSize, tt.Count)
	if hi != 0 || size > (1<<61) {
		return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrOverflow, Type: id, Spelling: e.Types.String(id)}
	}
	return TypeLayout{
		SizeInBits: size * 8,
		StoreSize:  size,
		AllocSize:  size,
		Align:      elem.Align,
	}, nil
}

func (e *LayoutEngine) structLayout(id types.TypeID) (TypeLayout, *LayoutError) {
	info, ok := e.Types.StructInfo(id)
	if !ok || info == nil {
		return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
	offsets := make([]uint64, len(info.Fields))
	var size uint64
	align := max(e.Target.AggAlign, 1)
	if info.Packed {
		align = 1
	}
	for i, f := range info.Fields {
		fl, err := e.layoutOf(f)
		if err != nil {
			return TypeLayout{Align: 1}, err
		}
		fAlign := fl.Align
		if info.Packed || fAlign <= 0 {
			fAlign = 1
		}
		size = roundUp(size, fAlign)
		offsets[i] = size
		next, carry := bits.Add64(size, fl.AllocSize, 0)
		if carry != 0 || next > (1<<61) {
			return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrOverflow, Type: id, Spelling: e.Types.String(id)}
		}
		size = next
		align = max(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		SizeInBits:   size * 8,
		StoreSize:    size,
		AllocSize:    size,
		Align:        align,
		FieldOffsets: offsets,
	}, nil
}
