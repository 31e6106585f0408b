package irbin

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 2

// Payload is the on-disk form of an ir.Module.
//
// Type references are indexes into Types, which mirrors the interner table
// of the encoded module (slot 0 is the invalid sentinel). Instruction
// operands refer to other instructions by their position in the flattened
// body of the enclosing function.
type Payload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Name       string
	Triple     string
	DataLayout string

	Types   []TypePayload
	Globals []GlobalPayload
	Funcs   []FuncPayload
}

// TypePayload is one interner entry.
type TypePayload struct {
	Kind  uint8
	Elem  uint32
	Count uint64
	Width uint32

	// struct
	Fields []uint32
	Packed bool

	// func
	Result   uint32
	Params   []uint32
	Variadic bool
}

// ConstPayload mirrors ir.Const.
type ConstPayload struct {
	Kind  uint8
	Int   int64
	Float float64
	Bytes []byte
}

// GlobalPayload mirrors ir.Global.
type GlobalPayload struct {
	Name     string
	Type     uint32
	Init     ConstPayload
	HasInit  bool
	Constant bool
}

// OperandPayload mirrors ir.Operand. Instr is a flat instruction position,
// -1 when the operand is not an instruction result.
type OperandPayload struct {
	Kind   uint8
	Type   uint32
	Instr  int32
	Param  int32
	Global string
	Const  ConstPayload
}

// InstrPayload flattens every instruction variant into one record.
// Operands and Blocks list values and block targets in the order
// ir.Instr.Operands and ir.Instr.BlockRefs enumerate them.
type InstrPayload struct {
	Op   string
	Name string
	Type uint32

	Indexed bool
	Index   int64

	Pred     string // icmp/fcmp
	Elem     uint32 // alloca, getelementptr
	FnType   uint32 // call, invoke
	Callee   string // direct callee
	Indirect bool
	HasValue bool   // ret
	Cond     bool   // br
	Cleanup  bool   // landingpad
	Filters  []bool // landingpad clause kinds, parallel to Operands

	Operands []OperandPayload
	Blocks   []int32
	Cases    []ConstPayload // switch
}

// BlockPayload mirrors ir.Block.
type BlockPayload struct {
	Name   string
	Instrs []InstrPayload
}

// FuncPayload mirrors ir.Func; parameter types come from Sig.
type FuncPayload struct {
	Name        string
	Sig         uint32
	ParamNames  []string
	Personality string
	Blocks      []BlockPayload
}
