package instrument

import "fmt"

// ContractKind enumerates the IR contract violations that abort tracing.
type ContractKind uint8

const (
	// ContractMissingLayout means the module has no usable target model.
	ContractMissingLayout ContractKind = iota + 1
	// ContractUnsized means a traced value has no storage size.
	ContractUnsized
	// ContractIDRange means an instruction ID does not fit an i32 literal.
	ContractIDRange
	// ContractMaxTraceRange means the max-trace option does not fit an i32.
	ContractMaxTraceRange
	// ContractTracerSignature means the module already declares the tracer
	// with another signature.
	ContractTracerSignature
	// ContractNoInsertionPoint means nothing follows the traced value in
	// its block.
	ContractNoInsertionPoint
)

func (k ContractKind) String() string {
	switch k {
	case ContractMissingLayout:
		return "missing data layout"
	case ContractUnsized:
		return "unsized value"
	case ContractIDRange:
		return "index out of i32 range"
	case ContractMaxTraceRange:
		return "max trace out of i32 range"
	case ContractTracerSignature:
		return "tracer signature clash"
	case ContractNoInsertionPoint:
		return "no insertion point"
	default:
		return fmt.Sprintf("ContractKind(%d)", k)
	}
}

// ContractError is a fatal violation of what the trace pass assumes about
// its input.
type ContractError struct {
	Kind  ContractKind
	Func  string // empty for module-level violations
	Instr string // offending instruction, if any
	Err   error
}

func (e *ContractError) Error() string {
	msg := e.Kind.String()
	if e.Func != "" {
		msg += " in @" + e.Func
	}
	if e.Instr != "" {
		msg += ": " + e.Instr
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContractError) Unwrap() error {
	return e.Err
}
