package irbin

import (
	"fmt"

	"fortio.org/safecast"

	"faultline/internal/ir"
	"faultline/internal/types"
)

// FromModule converts m into its serializable form.
func FromModule(m *ir.Module) (*Payload, error) {
	if m == nil {
		return nil, fmt.Errorf("irbin: nil module")
	}
	p := &Payload{
		Schema:     schemaVersion,
		Name:       m.Name,
		Triple:     m.Triple,
		DataLayout: m.DataLayout,
	}
	p.Types = encodeTypes(m.Types)
	for _, g := range m.Globals {
		p.Globals = append(p.Globals, GlobalPayload{
			Name:     g.Name,
			Type:     uint32(g.Type),
			Init:     encodeConst(g.Init),
			HasInit:  g.HasInit,
			Constant: g.Constant,
		})
	}
	for _, f := range m.Funcs {
		fp, err := encodeFunc(f)
		if err != nil {
			return nil, fmt.Errorf("irbin: function @%s: %w", f.Name, err)
		}
		p.Funcs = append(p.Funcs, fp)
	}
	return p, nil
}

func encodeTypes(in *types.Interner) []TypePayload {
	out := make([]TypePayload, in.Len())
	for i := range out {
		id := types.TypeID(i)
		t, _ := in.Lookup(id)
		tp := TypePayload{Kind: uint8(t.Kind), Elem: uint32(t.Elem), Count: t.Count, Width: t.Width}
		switch t.Kind {
		case types.KindStruct:
			if info, ok := in.StructInfo(id); ok {
				tp.Fields = typeIDs(info.Fields)
				tp.Packed = info.Packed
			}
		case types.KindFunc:
			if info, ok := in.FuncInfo(id); ok {
				tp.Result = uint32(info.Result)
				tp.Params = typeIDs(info.Params)
				tp.Variadic = info.Variadic
			}
		}
		out[i] = tp
	}
	return out
}

func typeIDs(ids []types.TypeID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func encodeConst(c ir.Const) ConstPayload {
	return ConstPayload{Kind: uint8(c.Kind), Int: c.Int, Float: c.Float, Bytes: c.Bytes}
}

func encodeFunc(f *ir.Func) (FuncPayload, error) {
	fp := FuncPayload{Name: f.Name, Sig: uint32(f.Sig), Personality: f.Personality}
	for _, prm := range f.Params {
		fp.ParamNames = append(fp.ParamNames, prm.Name)
	}
	pos := make(map[*ir.Instr]int32, f.InstrCount())
	for _, in := range f.Instructions() {
		n, err := safecast.Conv[int32](len(pos))
		if err != nil {
			return fp, err
		}
		pos[in] = n
	}
	for _, b := range f.Blocks {
		bp := BlockPayload{Name: b.Name}
		for _, in := range b.Instrs {
			ip, err := encodeInstr(in, pos)
			if err != nil {
				return fp, err
			}
			bp.Instrs = append(bp.Instrs, ip)
		}
		fp.Blocks = append(fp.Blocks, bp)
	}
	return fp, nil
}

func encodeInstr(in *ir.Instr, pos map[*ir.Instr]int32) (InstrPayload, error) {
	ip := InstrPayload{
		Op:      in.Op.String(),
		Name:    in.Name,
		Type:    uint32(in.Type),
		Indexed: in.Meta.Indexed,
		Index:   in.Meta.Index,
	}
	switch in.Kind() {
	case ir.InstrCmp:
		ip.Pred = in.Cmp.Pred
	case ir.InstrAlloca:
		ip.Elem = uint32(in.Alloca.Elem)
	case ir.InstrGEP:
		ip.Elem = uint32(in.GEP.Elem)
	case ir.InstrCall, ir.InstrInvoke:
		call, _ := in.CallSite()
		ip.FnType = uint32(call.FnType)
		ip.Callee = call.Callee.Name
		ip.Indirect = call.Callee.Kind == ir.CalleeIndirect
	case ir.InstrRet:
		ip.HasValue = in.Ret.HasValue
	case ir.InstrBr:
		ip.Cond = in.Br.Conditional
	case ir.InstrSwitch:
		for _, c := range in.Switch.Cases {
			ip.Cases = append(ip.Cases, encodeConst(c.Value))
		}
	case ir.InstrLandingPad:
		ip.Cleanup = in.Pad.Cleanup
		for _, c := range in.Pad.Clauses {
			ip.Filters = append(ip.Filters, c.Filter)
		}
	}
	for _, op := range in.Operands() {
		opp := OperandPayload{
			Kind:   uint8(op.Kind),
			Type:   uint32(op.Type),
			Instr:  -1,
			Global: op.Global,
			Const:  encodeConst(op.Const),
		}
		if op.Kind == ir.OperandInstr {
			n, ok := pos[op.Instr]
			if !ok {
				return ip, fmt.Errorf("%s uses a value from outside the function", in.Op)
			}
			opp.Instr = n
		}
		if op.Kind == ir.OperandParam {
			n, err := safecast.Conv[int32](op.Param)
			if err != nil {
				return ip, err
			}
			opp.Param = n
		}
		ip.Operands = append(ip.Operands, opp)
	}
	for _, ref := range in.BlockRefs() {
		ip.Blocks = append(ip.Blocks, int32(*ref))
	}
	return ip, nil
}
