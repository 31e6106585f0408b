package irtext

import (
	"strconv"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/types"
)

var opFlagWords = map[string]struct{}{
	"nuw": {}, "nsw": {}, "exact": {}, "disjoint": {}, "nneg": {}, "inbounds": {},
	"fast": {}, "nnan": {}, "ninf": {}, "nsz": {}, "arcp": {}, "contract": {},
	"afn": {}, "reassoc": {}, "volatile": {}, "atomic": {},
	"tail": {}, "musttail": {}, "notail": {},
	"ccc": {}, "fastcc": {}, "coldcc": {},
}

func (p *parser) skipOpFlags() {
	for p.tok.Kind == TokIdent {
		if _, ok := opFlagWords[p.tok.Text]; !ok {
			return
		}
		p.next()
	}
}

// parseInstr reads one instruction line including its attachments.
func (p *parser) parseInstr() (*ir.Instr, error) {
	fs := p.fn
	fs.pendingOps = fs.pendingOps[:0]
	fs.pendingLabels = fs.pendingLabels[:0]

	var (
		name    string
		nameSp  diag.Span
		hasName bool
	)
	if p.tok.Kind == TokLocal {
		name, nameSp, hasName = p.tok.Text, p.tok.Span, true
		p.next()
		if _, err := p.expect(TokEqual); err != nil {
			return nil, err
		}
	}

	// "tail call" and friends prefix the opcode.
	for p.tok.Kind == TokIdent && (p.tok.Text == "tail" || p.tok.Text == "musttail" || p.tok.Text == "notail") {
		p.next()
	}
	opTok := p.tok
	if opTok.Kind != TokIdent {
		return nil, p.unexpected("an instruction")
	}
	op, ok := ir.LookupOpcode(opTok.Text)
	if !ok {
		return nil, p.errorf(diag.SynUnknownOpcode, opTok.Span, "unknown instruction %q", opTok.Text)
	}
	p.next()

	in := &ir.Instr{Op: op, Type: p.bt.Void}
	if err := p.parseOperands(in); err != nil {
		return nil, err
	}
	if err := p.parseAttachments(in); err != nil {
		return nil, err
	}

	if hasName {
		if p.m.Types.IsVoid(in.Type) {
			return nil, p.errorf(diag.ResTypeMismatch, nameSp, "cannot name the void result of %s", op)
		}
		if _, dup := fs.values[name]; dup {
			return nil, p.errorf(diag.ResRedefinedValue, nameSp, "value %%%s redefined", name)
		}
		if _, dup := fs.params[name]; dup {
			return nil, p.errorf(diag.ResRedefinedValue, nameSp, "value %%%s redefined", name)
		}
		fs.values[name] = in
		if !isSlot(name) {
			in.Name = name
		}
	}
	p.bindPending(in)
	return in, nil
}

// bindPending ties queued names to the operand and block slots of in; the
// queues were filled in the same order Operands and BlockRefs enumerate.
func (p *parser) bindPending(in *ir.Instr) {
	fs := p.fn
	k := 0
	for _, op := range in.Operands() {
		if op.Kind != ir.OperandInstr || op.Instr != nil {
			continue
		}
		if k >= len(fs.pendingOps) {
			break
		}
		ref := fs.pendingOps[k]
		fs.ops = append(fs.ops, operandFixup{op: op, name: ref.name, span: ref.span})
		k++
	}
	for i, slot := range in.BlockRefs() {
		if i >= len(fs.pendingLabels) {
			break
		}
		ref := fs.pendingLabels[i]
		fs.blocks = append(fs.blocks, blockFixup{slot: slot, name: ref.name, span: ref.span})
	}
}

// parseAttachments consumes ", !index N", ", !dbg !7", ", align 4".
func (p *parser) parseAttachments(in *ir.Instr) error {
	for p.tok.Kind == TokComma {
		p.next()
		switch {
		case p.tok.Kind == TokMeta:
			key := p.tok
			p.next()
			if key.Text == "index" && p.tok.Kind == TokInt {
				v, err := strconv.ParseInt(p.tok.Text, 10, 64)
				if err != nil {
					return p.errorf(diag.LexBadNumber, p.tok.Span, "bad index %s", p.tok.Text)
				}
				in.Meta = ir.Meta{Indexed: true, Index: v}
				p.next()
				continue
			}
			if p.tok.Kind == TokMeta || p.tok.Kind == TokInt {
				p.next()
				if p.tok.Kind == TokLBrace {
					if err := p.skipBalanced(TokLBrace, TokRBrace); err != nil {
						return err
					}
				}
			}
		case p.isIdent("align"):
			p.next()
			if _, err := p.expect(TokInt); err != nil {
				return err
			}
		default:
			return p.unexpected("an instruction attachment")
		}
	}
	return nil
}

// moreOperands reports whether a comma is followed by another typed operand
// rather than an attachment.
func (p *parser) moreOperands() bool {
	if p.tok.Kind != TokComma {
		return false
	}
	la := p.lookahead()
	switch la.Kind {
	case TokMeta:
		return false
	case TokIdent:
		return la.Text != "align"
	}
	return true
}

func (p *parser) parseOperands(in *ir.Instr) error {
	switch in.Kind() {
	case ir.InstrBinary:
		p.skipOpFlags()
		left, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		right, err := p.parseValue(left.Type)
		if err != nil {
			return err
		}
		in.Type = left.Type
		in.Binary = ir.BinaryInstr{Left: left, Right: right}

	case ir.InstrCast:
		p.skipOpFlags()
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if err := p.expectIdent("to"); err != nil {
			return err
		}
		to, err := p.parseType()
		if err != nil {
			return err
		}
		in.Type = to
		in.Cast = ir.CastInstr{Value: v}

	case ir.InstrCmp:
		p.skipOpFlags()
		predTok := p.tok
		if predTok.Kind != TokIdent || !ir.ValidPredicate(in.Op, predTok.Text) {
			return p.errorf(diag.SynUnknownPredicate, predTok.Span, "unknown %s predicate %q", in.Op, predTok.Text)
		}
		p.next()
		left, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		right, err := p.parseValue(left.Type)
		if err != nil {
			return err
		}
		in.Type = p.bt.I1
		in.Cmp = ir.CmpInstr{Pred: predTok.Text, Left: left, Right: right}

	case ir.InstrAlloca:
		p.skipOpFlags()
		elem, err := p.parseType()
		if err != nil {
			return err
		}
		// Array-size operand "i32 1" carries no information the model keeps.
		if p.moreOperands() {
			p.next()
			if _, err := p.parseTypedValue(); err != nil {
				return err
			}
		}
		in.Type = p.bt.Ptr
		in.Alloca = ir.AllocaInstr{Elem: elem}

	case ir.InstrLoad:
		p.skipOpFlags()
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		ptr, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		in.Type = ty
		in.Load = ir.LoadInstr{Ptr: ptr}

	case ir.InstrStore:
		p.skipOpFlags()
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		ptr, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		in.Store = ir.StoreInstr{Value: v, Ptr: ptr}

	case ir.InstrGEP:
		p.skipOpFlags()
		elem, err := p.parseType()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		base, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		var idx []ir.Operand
		for p.moreOperands() {
			p.next()
			p.skipOpFlags() // inrange
			v, err := p.parseTypedValue()
			if err != nil {
				return err
			}
			idx = append(idx, v)
		}
		in.Type = p.bt.Ptr
		in.GEP = ir.GEPInstr{Elem: elem, Base: base, Indices: idx}

	case ir.InstrCall:
		call, result, err := p.parseCallBody()
		if err != nil {
			return err
		}
		in.Type = result
		in.Call = call

	case ir.InstrInvoke:
		call, result, err := p.parseCallBody()
		if err != nil {
			return err
		}
		if err := p.expectIdent("to"); err != nil {
			return err
		}
		if err := p.parseLabelRef(); err != nil {
			return err
		}
		if err := p.expectIdent("unwind"); err != nil {
			return err
		}
		if err := p.parseLabelRef(); err != nil {
			return err
		}
		in.Type = result
		in.Invoke = ir.InvokeInstr{Call: call, Normal: ir.NoBlockID, Unwind: ir.NoBlockID}

	case ir.InstrPhi:
		p.skipOpFlags()
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		var incoming []ir.PhiIncoming
		for {
			if _, err := p.expect(TokLBrack); err != nil {
				return err
			}
			v, err := p.parseValue(ty)
			if err != nil {
				return err
			}
			if _, err := p.expect(TokComma); err != nil {
				return err
			}
			if err := p.parseBlockName(); err != nil {
				return err
			}
			if _, err := p.expect(TokRBrack); err != nil {
				return err
			}
			incoming = append(incoming, ir.PhiIncoming{Value: v, Block: ir.NoBlockID})
			if !p.moreOperands() {
				break
			}
			p.next()
		}
		in.Type = ty
		in.Phi = ir.PhiInstr{Incoming: incoming}

	case ir.InstrSelect:
		p.skipOpFlags()
		cond, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		t, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		f, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		in.Type = t.Type
		in.Select = ir.SelectInstr{Cond: cond, True: t, False: f}

	case ir.InstrRet:
		if p.isIdent("void") {
			p.next()
			return nil
		}
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		in.Ret = ir.RetInstr{HasValue: true, Value: v}

	case ir.InstrBr:
		if p.isIdent("label") {
			if err := p.parseLabelRef(); err != nil {
				return err
			}
			in.Br = ir.BrInstr{Then: ir.NoBlockID, Else: ir.NoBlockID}
			return nil
		}
		cond, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		for range 2 {
			if _, err := p.expect(TokComma); err != nil {
				return err
			}
			if err := p.parseLabelRef(); err != nil {
				return err
			}
		}
		in.Br = ir.BrInstr{Conditional: true, Cond: cond, Then: ir.NoBlockID, Else: ir.NoBlockID}

	case ir.InstrSwitch:
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokComma); err != nil {
			return err
		}
		if err := p.parseLabelRef(); err != nil {
			return err
		}
		if _, err := p.expect(TokLBrack); err != nil {
			return err
		}
		var cases []ir.SwitchCase
		for p.tok.Kind != TokRBrack {
			c, err := p.parseTypedValue()
			if err != nil {
				return err
			}
			if c.Kind != ir.OperandConst {
				return p.errorf(diag.SynExpectValue, p.tok.Span, "switch case must be a constant")
			}
			if _, err := p.expect(TokComma); err != nil {
				return err
			}
			if err := p.parseLabelRef(); err != nil {
				return err
			}
			cases = append(cases, ir.SwitchCase{Value: c.Const, Target: ir.NoBlockID})
		}
		p.next()
		in.Switch = ir.SwitchInstr{Value: v, Default: ir.NoBlockID, Cases: cases}

	case ir.InstrLandingPad:
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		var pad ir.LandingPadInstr
		for {
			switch {
			case p.isIdent("cleanup"):
				p.next()
				pad.Cleanup = true
				continue
			case p.isIdent("catch"), p.isIdent("filter"):
				filter := p.tok.Text == "filter"
				p.next()
				v, err := p.parseTypedValue()
				if err != nil {
					return err
				}
				pad.Clauses = append(pad.Clauses, ir.LandingClause{Filter: filter, Value: v})
				continue
			}
			break
		}
		if !pad.Cleanup && len(pad.Clauses) == 0 {
			return p.unexpected("cleanup, catch or filter")
		}
		in.Type = ty
		in.Pad = pad

	case ir.InstrUnreachable:
	}
	return nil
}

// parseCallBody reads "T [(params)] callee(args) [#N]" and returns the
// call payload with its result type.
func (p *parser) parseCallBody() (ir.CallInstr, types.TypeID, error) {
	p.skipOpFlags()
	p.skipAttrs()
	result, err := p.parseType()
	if err != nil {
		return ir.CallInstr{}, types.NoTypeID, err
	}
	var explicit types.TypeID
	if p.tok.Kind == TokLParen {
		params, variadic, err := p.parseParamTypes()
		if err != nil {
			return ir.CallInstr{}, types.NoTypeID, err
		}
		explicit = p.m.Types.Func(result, variadic, params...)
	}

	var callee ir.Callee
	switch p.tok.Kind {
	case TokGlobal:
		callee = ir.Callee{Kind: ir.CalleeDirect, Name: p.tok.Text}
		p.next()
	case TokLocal:
		v, err := p.parseValue(p.bt.Ptr)
		if err != nil {
			return ir.CallInstr{}, types.NoTypeID, err
		}
		callee = ir.Callee{Kind: ir.CalleeIndirect, Value: v}
	default:
		return ir.CallInstr{}, types.NoTypeID, p.unexpected("a callee")
	}

	if _, err := p.expect(TokLParen); err != nil {
		return ir.CallInstr{}, types.NoTypeID, err
	}
	var (
		args     []ir.Operand
		argTypes []types.TypeID
	)
	for p.tok.Kind != TokRParen {
		a, err := p.parseTypedValue()
		if err != nil {
			return ir.CallInstr{}, types.NoTypeID, err
		}
		args = append(args, a)
		argTypes = append(argTypes, a.Type)
		if !p.accept(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return ir.CallInstr{}, types.NoTypeID, err
	}
	for p.tok.Kind == TokAttrRef || (p.tok.Kind == TokIdent && p.tok.Text != "to") {
		if p.tok.Kind == TokIdent {
			if _, ok := paramAttrWords[p.tok.Text]; !ok && p.tok.Text != "nounwind" {
				break
			}
		}
		p.next()
	}

	fnType := explicit
	if fnType == types.NoTypeID {
		fnType = p.m.Types.Func(result, false, argTypes...)
	}
	return ir.CallInstr{FnType: fnType, Callee: callee, Args: args}, result, nil
}

func (p *parser) parseParamTypes() ([]types.TypeID, bool, error) {
	p.next() // (
	var (
		params   []types.TypeID
		variadic bool
	)
	for p.tok.Kind != TokRParen {
		if p.accept(TokEllipsis) {
			variadic = true
			break
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, false, err
		}
		params = append(params, ty)
		if !p.accept(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, false, err
	}
	return params, variadic, nil
}
