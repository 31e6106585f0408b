package layout

import (
	"faultline/internal/types"
)

// TypeLayout is the storage layout of a type for a specific Target.
type TypeLayout struct {
	SizeInBits uint64 // exact bit width of the value
	StoreSize  uint64 // bytes touched by a store
	AllocSize  uint64 // store size rounded up to the ABI alignment
	Align      int    // ABI alignment in bytes

	// Struct-only:
	FieldOffsets []uint64
}

// LayoutEngine computes memory layout for types.
type LayoutEngine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	l, err := e.layoutOf(t)
	if err != nil {
		return l, err
	}
	return l, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID) (TypeLayout, *LayoutError) {
	if e.cache == nil {
		e.cache = newCache()
	}
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}
	l, err := e.computeLayout(t)
	e.cache.put(t, cacheEntry{Layout: l, Err: err})
	return l, err
}

// TypeSizeInBits returns the exact number of bits a value of t occupies.
func (e *LayoutEngine) TypeSizeInBits(t types.TypeID) (uint64, error) {
	l, err := e.LayoutOf(t)
	return l.SizeInBits, err
}

// StoreSize returns the number of bytes written when storing t.
func (e *LayoutEngine) StoreSize(t types.TypeID) (uint64, error) {
	l, err := e.LayoutOf(t)
	return l.StoreSize, err
}

// AllocSize returns the distance in bytes between consecutive array elements of t.
func (e *LayoutEngine) AllocSize(t types.TypeID) (uint64, error) {
	l, err := e.LayoutOf(t)
	return l.AllocSize, err
}

// AlignOf returns the ABI alignment of a type in bytes.
func (e *LayoutEngine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (e *LayoutEngine) FieldOffset(structT types.TypeID, fieldIdx int) (uint64, error) {
	l, err := e.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, nil
	}
	return l.FieldOffsets[fieldIdx], nil
}

// ByteSize converts a bit width to whole bytes, rounding up.
func ByteSize(bits uint64) uint64 {
	return (bits + 7) / 8
}
