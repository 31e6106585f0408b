package selector

import (
	"fmt"
	"strings"
)

// Kinds of configurable selectors.
const (
	KindInstType = "insttype"
	KindFuncName = "funcname"
	KindCallName = "callname"
)

// Custom declares a selector in configuration.
type Custom struct {
	Name        string
	Kind        string
	Category    string
	Description string
	Opcodes     []string
	Functions   []string
}

// Build constructs the selector described by c.
func (c Custom) Build() (Selector, error) {
	category := c.Category
	if category == "" {
		category = c.Name
	}
	switch strings.ToLower(c.Kind) {
	case KindInstType:
		return NewOpcodeSelector(category, c.Opcodes)
	case KindFuncName:
		return NewFuncNameSelector(category, c.Functions)
	case KindCallName:
		if len(c.Functions) == 0 {
			return nil, fmt.Errorf("callname selector needs at least one function")
		}
		return NewCallNameSelector(category, c.Functions...), nil
	default:
		return nil, fmt.Errorf("unknown selector kind %q (expected: %s|%s|%s)", c.Kind, KindInstType, KindFuncName, KindCallName)
	}
}

// Bootstrap builds the process registry: builtin selectors first, then
// the custom ones in declaration order.
func Bootstrap(custom []Custom) (*Registry, error) {
	r := NewRegistry()
	r.MustRegister(BlockCopyName, "calls to memcpy/memmove intrinsics (category "+BlockCopyCategory+")", NewBlockCopy())
	for _, c := range custom {
		sel, err := c.Build()
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", c.Name, err)
		}
		desc := c.Description
		if desc == "" {
			desc = c.Kind + " selector"
		}
		if err := r.Register(c.Name, desc, sel); err != nil {
			return nil, err
		}
	}
	return r, nil
}
