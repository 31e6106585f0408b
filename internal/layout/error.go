package layout

import (
	"fmt"

	"faultline/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrUnsized indicates a type without a storage size (void, label, function).
	LayoutErrUnsized LayoutErrorKind = iota + 1
	// LayoutErrUnknownType indicates a TypeID the interner does not know.
	LayoutErrUnknownType
	// LayoutErrOverflow indicates an aggregate whose size does not fit 64 bits.
	LayoutErrOverflow
	// LayoutErrMissingTarget indicates a module without triple or datalayout.
	LayoutErrMissingTarget
	// LayoutErrBadDataLayout indicates a malformed datalayout string.
	LayoutErrBadDataLayout
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind     LayoutErrorKind
	Type     types.TypeID
	Spelling string // type spelling or offending datalayout component
	Err      error
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrUnsized:
		return fmt.Sprintf("type %s has no storage size", e.Spelling)
	case LayoutErrUnknownType:
		return fmt.Sprintf("unknown type#%d", e.Type)
	case LayoutErrOverflow:
		return fmt.Sprintf("size of %s overflows", e.Spelling)
	case LayoutErrMissingTarget:
		return "module has neither a target triple nor a datalayout"
	case LayoutErrBadDataLayout:
		if e.Err != nil {
			return fmt.Sprintf("bad datalayout component %q: %v", e.Spelling, e.Err)
		}
		return fmt.Sprintf("bad datalayout component %q", e.Spelling)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
