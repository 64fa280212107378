package emitter

import "fluid/ast"

// emitFunctionLiteral compiles a nested function literal against its own
// FuncState chained to the current one via Parent (§4.7), then emits an
// FNEW in the parent referencing the finished Prototype as a GC constant.
func (em *Emitter) emitFunctionLiteral(n ast.FunctionExpr) (ExpDesc, error) {
	parent := em.fs
	span := spanToken(n.Span_)

	child := newFuncState(em.ctx, parent)
	child.Vararg = n.IsVararg
	em.fs = child

	headerOp := OpFuncF
	if n.IsVararg {
		headerOp = OpFuncV
	}
	child.emit(span, ABC(headerOp, 0, 0, 0))

	child.BeginScope(false)
	for _, p := range n.Params {
		if _, err := child.DeclareLocal(span, p.Lexeme); err != nil {
			em.fs = parent
			return ExpDesc{}, err
		}
	}
	for _, s := range n.Body {
		if err := em.EmitStmt(s); err != nil {
			em.fs = parent
			return ExpDesc{}, err
		}
	}
	if err := child.EndScope(span); err != nil {
		em.fs = parent
		return ExpDesc{}, err
	}
	if !child.HasReturn {
		child.emit(span, ABC(OpRet0, 0, 0, 0))
	}

	proto, err := child.Finish(len(n.Params))
	em.fs = parent
	if err != nil {
		return ExpDesc{}, err
	}

	parent.HasFfi = parent.HasFfi || proto.HasFfi
	parent.ChildHasReturn = parent.ChildHasReturn || child.HasReturn
	parent.Child = true

	kidx, err := parent.constants.internGCObject(span, gcTagProto, &proto, proto)
	if err != nil {
		return ExpDesc{}, err
	}
	pc := parent.emit(span, AD(OpFNew, 0, uint16(kidx)))
	return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
}
