package irbin

import (
	"fmt"

	"faultline/internal/ir"
	"faultline/internal/types"
)

// ToModule rebuilds a module from its serializable form.
func ToModule(p *Payload) (*ir.Module, error) {
	if p == nil {
		return nil, fmt.Errorf("irbin: nil payload")
	}
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrSchema, p.Schema, schemaVersion)
	}
	m := ir.NewModule(p.Name)
	m.Triple = p.Triple
	m.DataLayout = p.DataLayout

	d := decoder{m: m}
	if err := d.types(p.Types); err != nil {
		return nil, err
	}
	for _, gp := range p.Globals {
		ty, err := d.typeID(gp.Type)
		if err != nil {
			return nil, fmt.Errorf("irbin: global @%s: %w", gp.Name, err)
		}
		g := &ir.Global{Name: gp.Name, Type: ty, Init: decodeConst(gp.Init), HasInit: gp.HasInit, Constant: gp.Constant}
		if err := m.AddGlobal(g); err != nil {
			return nil, fmt.Errorf("irbin: %w", err)
		}
	}
	for i := range p.Funcs {
		if err := d.function(&p.Funcs[i]); err != nil {
			return nil, fmt.Errorf("irbin: function @%s: %w", p.Funcs[i].Name, err)
		}
	}
	return m, nil
}

type decoder struct {
	m     *ir.Module
	tmap  []types.TypeID
	instr []*ir.Instr
}

// types re-interns the encoded table; every entry only refers to earlier
// ones, so a single forward walk suffices.
func (d *decoder) types(tps []TypePayload) error {
	if len(tps) == 0 || types.Kind(tps[0].Kind) != types.KindInvalid {
		return fmt.Errorf("irbin: type table lacks the invalid sentinel")
	}
	in := d.m.Types
	d.tmap = make([]types.TypeID, 1, len(tps))
	for i := 1; i < len(tps); i++ {
		tp := tps[i]
		var id types.TypeID
		switch k := types.Kind(tp.Kind); k {
		case types.KindVoid, types.KindLabel, types.KindInt, types.KindFloat, types.KindPointer:
			id = in.Intern(types.Type{Kind: k, Width: tp.Width})
		case types.KindArray:
			elem, err := d.typeID(tp.Elem)
			if err != nil {
				return fmt.Errorf("irbin: type %d: %w", i, err)
			}
			id = in.Array(elem, tp.Count)
		case types.KindStruct:
			fields, err := d.typeList(tp.Fields)
			if err != nil {
				return fmt.Errorf("irbin: type %d: %w", i, err)
			}
			id = in.Struct(tp.Packed, fields...)
		case types.KindFunc:
			result, err := d.typeID(tp.Result)
			if err != nil {
				return fmt.Errorf("irbin: type %d: %w", i, err)
			}
			params, err := d.typeList(tp.Params)
			if err != nil {
				return fmt.Errorf("irbin: type %d: %w", i, err)
			}
			id = in.Func(result, tp.Variadic, params...)
		default:
			return fmt.Errorf("irbin: type %d has unknown kind %d", i, tp.Kind)
		}
		d.tmap = append(d.tmap, id)
	}
	return nil
}

func (d *decoder) typeID(old uint32) (types.TypeID, error) {
	if int(old) >= len(d.tmap) {
		return types.NoTypeID, fmt.Errorf("type reference %d out of range", old)
	}
	return d.tmap[old], nil
}

func (d *decoder) typeList(olds []uint32) ([]types.TypeID, error) {
	out := make([]types.TypeID, len(olds))
	for i, old := range olds {
		id, err := d.typeID(old)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func decodeConst(c ConstPayload) ir.Const {
	return ir.Const{Kind: ir.ConstKind(c.Kind), Int: c.Int, Float: c.Float, Bytes: c.Bytes}
}

func (d *decoder) function(fp *FuncPayload) error {
	sig, err := d.typeID(fp.Sig)
	if err != nil {
		return err
	}
	f, err := d.m.AddFunc(fp.Name, sig, fp.ParamNames...)
	if err != nil {
		return err
	}
	f.Personality = fp.Personality

	// Allocate every instruction first so operands can point forward.
	d.instr = d.instr[:0]
	for _, bp := range fp.Blocks {
		b := f.NewBlock(bp.Name)
		for range bp.Instrs {
			in := &ir.Instr{}
			b.Append(in)
			d.instr = append(d.instr, in)
		}
	}
	k := 0
	for _, bp := range fp.Blocks {
		for i := range bp.Instrs {
			if err := d.fill(d.instr[k], &bp.Instrs[i], len(f.Params)); err != nil {
				return fmt.Errorf("instruction %d: %w", k, err)
			}
			k++
		}
	}
	return nil
}

func (d *decoder) fill(in *ir.Instr, ip *InstrPayload, params int) error {
	op, ok := ir.LookupOpcode(ip.Op)
	if !ok {
		return fmt.Errorf("unknown opcode %q", ip.Op)
	}
	ty, err := d.typeID(ip.Type)
	if err != nil {
		return err
	}
	in.Op = op
	in.Name = ip.Name
	in.Type = ty
	in.Meta = ir.Meta{Indexed: ip.Indexed, Index: ip.Index}

	// Shape the variant so Operands and BlockRefs expose the right slots.
	n := len(ip.Operands)
	switch in.Kind() {
	case ir.InstrCmp:
		in.Cmp.Pred = ip.Pred
	case ir.InstrAlloca:
		if in.Alloca.Elem, err = d.typeID(ip.Elem); err != nil {
			return err
		}
	case ir.InstrGEP:
		if in.GEP.Elem, err = d.typeID(ip.Elem); err != nil {
			return err
		}
		if n > 1 {
			in.GEP.Indices = make([]ir.Operand, n-1)
		}
	case ir.InstrCall, ir.InstrInvoke:
		call, _ := in.CallSite()
		if call.FnType, err = d.typeID(ip.FnType); err != nil {
			return err
		}
		args := n
		if ip.Indirect {
			call.Callee.Kind = ir.CalleeIndirect
			args--
		} else {
			call.Callee.Name = ip.Callee
		}
		if args < 0 {
			return fmt.Errorf("indirect call without a callee operand")
		}
		call.Args = make([]ir.Operand, args)
	case ir.InstrPhi:
		in.Phi.Incoming = make([]ir.PhiIncoming, n)
	case ir.InstrRet:
		in.Ret.HasValue = ip.HasValue
	case ir.InstrBr:
		in.Br.Conditional = ip.Cond
		in.Br.Else = ir.NoBlockID
	case ir.InstrSwitch:
		in.Switch.Cases = make([]ir.SwitchCase, len(ip.Cases))
		for i, c := range ip.Cases {
			in.Switch.Cases[i].Value = decodeConst(c)
		}
	case ir.InstrLandingPad:
		if len(ip.Filters) != n {
			return fmt.Errorf("landingpad has %d clause kinds for %d clauses", len(ip.Filters), n)
		}
		in.Pad.Cleanup = ip.Cleanup
		in.Pad.Clauses = make([]ir.LandingClause, n)
		for i, filter := range ip.Filters {
			in.Pad.Clauses[i].Filter = filter
		}
	}

	slots := in.Operands()
	if len(slots) != n {
		return fmt.Errorf("%s expects %d operands, payload has %d", op, len(slots), n)
	}
	for i, slot := range slots {
		v, err := d.operand(ip.Operands[i], params)
		if err != nil {
			return err
		}
		*slot = v
	}
	refs := in.BlockRefs()
	if len(refs) != len(ip.Blocks) {
		return fmt.Errorf("%s expects %d block targets, payload has %d", op, len(refs), len(ip.Blocks))
	}
	for i, ref := range refs {
		*ref = ir.BlockID(ip.Blocks[i])
	}
	return nil
}

func (d *decoder) operand(opp OperandPayload, params int) (ir.Operand, error) {
	ty, err := d.typeID(opp.Type)
	if err != nil {
		return ir.Operand{}, err
	}
	op := ir.Operand{Kind: ir.OperandKind(opp.Kind), Type: ty}
	switch op.Kind {
	case ir.OperandInstr:
		if opp.Instr < 0 || int(opp.Instr) >= len(d.instr) {
			return op, fmt.Errorf("value reference %d out of range", opp.Instr)
		}
		op.Instr = d.instr[opp.Instr]
	case ir.OperandParam:
		if opp.Param < 0 || int(opp.Param) >= params {
			return op, fmt.Errorf("parameter %d out of range", opp.Param)
		}
		op.Param = int(opp.Param)
	case ir.OperandGlobal:
		op.Global = opp.Global
	case ir.OperandConst:
		op.Const = decodeConst(opp.Const)
	default:
		return op, fmt.Errorf("unknown operand kind %d", opp.Kind)
	}
	return op, nil
}
