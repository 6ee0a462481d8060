package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Inline replaces calls to library functions marked inline with their
// bodies. Callee variables are renamed to fresh temporaries of the caller;
// the callee's return statement becomes assignments to the call results.
// Inlined bodies are not inlined again.
var Inline = pass(optimizer.PassInline, inline)

func inline(ctx *optimizer.Context, b *ir.Block) (int, error) {
	if len(ctx.Library) == 0 {
		return 0, nil
	}
	mark := b.NumVars()
	out := make([]*ir.Instruction, 0, len(b.Instrs))
	actions := 0
	for _, p := range b.Instrs {
		fn, ok := ctx.Library[p.Name()]
		if !ok || !fn.Inline || p.Token != ir.TokAssign {
			out = append(out, p)
			continue
		}
		body, err := expand(b, fn.Block, p)
		if err != nil {
			b.Truncate(mark)
			return 0, err
		}
		out = append(out, body...)
		actions++
	}
	if actions == 0 {
		return 0, nil
	}
	b.Swap(out)
	ctx.Log().Debug("inline", "block", b.Name, "calls", actions)
	return actions, nil
}

// expand returns the body of callee specialised for call.
func expand(b, callee *ir.Block, call *ir.Instruction) ([]*ir.Instruction, error) {
	if len(callee.Params) != call.NumParams() {
		return nil, optimizer.NewMalformed(call, "%s takes %d parameters, called with %d",
			callee.Name, len(callee.Params), call.NumParams())
	}
	vars := make(map[ir.VarID]ir.VarID, callee.NumVars())
	for i, v := range callee.Params {
		vars[v] = call.Param(i)
	}
	rename := func(v ir.VarID) (ir.VarID, error) {
		if w, ok := vars[v]; ok {
			return w, nil
		}
		var (
			w   ir.VarID
			err error
		)
		if callee.IsConst(v) {
			w, err = b.NewConst(callee.Type(v), callee.ConstValue(v))
		} else {
			w, err = b.NewTmp(callee.Type(v))
		}
		if err != nil {
			return ir.NoVar, err
		}
		vars[v] = w
		return w, nil
	}

	var out []*ir.Instruction
	returned := false
	for _, q := range callee.Instrs {
		switch q.Token {
		case ir.TokEnd, ir.TokNoop:
			continue
		case ir.TokReturn:
			if q.NumParams() != call.Retc {
				return nil, optimizer.NewMalformed(call, "%s returns %d values, call expects %d",
					callee.Name, q.NumParams(), call.Retc)
			}
			for i, v := range q.Params() {
				src, err := rename(v)
				if err != nil {
					return nil, err
				}
				out = append(out, ir.NewAssignment(call.Ret(i), src))
			}
			returned = true
		default:
			r := q.Clone()
			for i, v := range r.Args {
				w, err := rename(v)
				if err != nil {
					return nil, err
				}
				r.Args[i] = w
			}
			out = append(out, r)
		}
		if returned {
			break
		}
	}
	if !returned && call.Retc > 0 {
		return nil, optimizer.NewMalformed(call, "%s has no return", callee.Name)
	}
	return out, nil
}
