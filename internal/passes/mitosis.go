package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Mitosis splits every whole-table column bind into partitioned binds
// combined by mat.pack:
//
//	X := sql.bind(s, t, c)
//
// becomes
//
//	X_0 := sql.bind(s, t, c, 0, n)
//	...
//	X := mat.pack(X_0, ..., X_n-1)
//
// Row id binds (sql.tid) are split the same way. Tables known to hold
// fewer rows than partitions get one partition per row; single-row tables
// are left alone.
var Mitosis = pass(optimizer.PassMitosis, mitosis)

func mitosis(ctx *optimizer.Context, b *ir.Block) (int, error) {
	n := ctx.Options.Partitions
	if n <= 0 {
		n = optimizer.DefaultPartitions
	}

	mark := b.NumVars()
	consts := make(map[int64]ir.VarID)
	constant := func(v int64) (ir.VarID, error) {
		if id, ok := consts[v]; ok {
			return id, nil
		}
		id, err := b.NewConst(ir.TypeInt, ir.Int(v))
		if err != nil {
			return ir.NoVar, err
		}
		consts[v] = id
		return id, nil
	}

	out := make([]*ir.Instruction, 0, len(b.Instrs))
	actions := 0
	for _, p := range b.Instrs {
		if !isColumnBind(p) || !b.Type(p.Ret(0)).IsColumn() {
			out = append(out, p)
			continue
		}
		parts := n
		if schema, table, ok := bindTable(b, p); ok && ctx.Catalog != nil {
			if rows, known := ctx.Catalog.Rows(schema, table); known && rows < parts {
				parts = rows
			}
		}
		if parts < 2 {
			out = append(out, p)
			continue
		}

		split, err := splitBind(b, p, parts, constant)
		if err != nil {
			b.Truncate(mark)
			return 0, err
		}
		out = append(out, split...)
		actions++
	}
	if actions == 0 {
		return 0, nil
	}
	b.Swap(out)
	ctx.Log().Debug("mitosis", "block", b.Name, "binds", actions, "partitions", n)
	return actions, nil
}

func splitBind(b *ir.Block, p *ir.Instruction, n int, constant func(int64) (ir.VarID, error)) ([]*ir.Instruction, error) {
	total, err := constant(int64(n))
	if err != nil {
		return nil, err
	}
	typ := b.Type(p.Ret(0))
	pack := ir.NewInstruction(ir.ModMat, ir.FnPack).PushReturn(p.Ret(0))
	out := make([]*ir.Instruction, 0, n+1)
	for k := 0; k < n; k++ {
		part, err := b.NewTmp(typ)
		if err != nil {
			return nil, err
		}
		idx, err := constant(int64(k))
		if err != nil {
			return nil, err
		}
		q := p.Clone()
		q.SetArg(0, part)
		q.PushArg(idx).PushArg(total)
		out = append(out, q)
		pack.PushArg(part)
	}
	return append(out, pack), nil
}
