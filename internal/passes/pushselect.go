package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Pushselect gives selections over a table column without a candidate
// list the row ids of that table as candidates, so later passes see which
// table the selection ranges over. A sql.tid of the table is reused when
// the block already binds one before the selection and added otherwise.
var Pushselect = pass(optimizer.PassPushselect, pushselect)

type tableKey struct{ schema, table string }

func pushselect(ctx *optimizer.Context, b *ir.Block) (int, error) {
	mark := b.NumVars()
	tids := make(map[tableKey]ir.VarID)
	tables := make(map[ir.VarID]tableKey)

	out := make([]*ir.Instruction, 0, len(b.Instrs))
	actions := 0
	for _, p := range b.Instrs {
		if isColumnBind(p) {
			if schema, table, ok := bindTable(b, p); ok {
				key := tableKey{schema, table}
				if p.Function == ir.FnTid {
					if _, seen := tids[key]; !seen {
						tids[key] = p.Ret(0)
					}
				} else {
					tables[p.Ret(0)] = key
				}
			}
		}
		if !isUnfilteredSelect(b, p) {
			out = append(out, p)
			continue
		}
		key, ok := tables[p.Param(0)]
		if !ok {
			out = append(out, p)
			continue
		}
		tid, ok := tids[key]
		if !ok {
			var err error
			tid, err = b.NewTmp(ir.TypeOids)
			if err != nil {
				b.Truncate(mark)
				return 0, err
			}
			schema, err := b.NewConst(ir.TypeStr, ir.Str(key.schema))
			if err != nil {
				b.Truncate(mark)
				return 0, err
			}
			table, err := b.NewConst(ir.TypeStr, ir.Str(key.table))
			if err != nil {
				b.Truncate(mark)
				return 0, err
			}
			out = append(out, ir.NewInstruction(ir.ModSQL, ir.FnTid).PushReturn(tid).PushArg(schema).PushArg(table))
			tids[key] = tid
		}
		q := p.Clone()
		q.SetArg(q.Retc+1, tid)
		out = append(out, q)
		actions++
	}
	if actions == 0 {
		return 0, nil
	}
	b.Swap(out)
	ctx.Log().Debug("pushselect", "block", b.Name, "selects", actions)
	return actions, nil
}

func isUnfilteredSelect(b *ir.Block, p *ir.Instruction) bool {
	if p.Module != ir.ModAlgebra || (p.Function != ir.FnSelect && p.Function != ir.FnThetaselect) {
		return false
	}
	return p.Retc == 1 && p.NumParams() > 2 && b.IsNilConst(p.Param(1))
}
