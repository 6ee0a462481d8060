package ir

import (
	"strings"
)

// String renders the block listing: one instruction per line followed by a
// comment line per history annotation. A variable carries its type
// annotation at its first occurrence, so the listing parses back.
func (b *Block) String() string {
	var sb strings.Builder
	seen := make(map[VarID]bool)
	for _, p := range b.Instrs {
		b.writeInstr(&sb, p, seen)
		sb.WriteByte('\n')
	}
	for _, a := range b.History {
		sb.WriteString("# ")
		sb.WriteString(a.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Format renders a single instruction with every variable annotated.
func (b *Block) Format(p *Instruction) string {
	var sb strings.Builder
	b.writeInstr(&sb, p, make(map[VarID]bool))
	return sb.String()
}

// Listing returns the instruction lines without history.
func (b *Block) Listing() []string {
	seen := make(map[VarID]bool)
	lines := make([]string, 0, len(b.Instrs))
	for _, p := range b.Instrs {
		var sb strings.Builder
		b.writeInstr(&sb, p, seen)
		lines = append(lines, sb.String())
	}
	return lines
}

func (b *Block) writeInstr(sb *strings.Builder, p *Instruction, seen map[VarID]bool) {
	switch p.Token {
	case TokEnd:
		sb.WriteString("end")
		if b.Name != "" {
			sb.WriteString(" " + b.Name)
		}
		sb.WriteByte(';')
		return
	case TokNoop:
		sb.WriteString("noop;")
		return
	case TokBarrier, TokCatch, TokExit, TokReturn:
		sb.WriteString(p.Token.String())
		sb.WriteByte(' ')
	}

	switch {
	case p.Retc == 1:
		b.writeVar(sb, p.Args[0], seen)
	case p.Retc > 1:
		sb.WriteByte('(')
		for i := 0; i < p.Retc; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			b.writeVar(sb, p.Args[i], seen)
		}
		sb.WriteByte(')')
	}

	if p.Module == "" && p.Function == "" {
		if p.NumParams() > 0 {
			if p.Retc > 0 {
				sb.WriteString(" := ")
			}
			for i, a := range p.Params() {
				if i > 0 {
					sb.WriteString(", ")
				}
				b.writeVar(sb, a, seen)
			}
		}
		sb.WriteByte(';')
		return
	}

	if p.Retc > 0 {
		sb.WriteString(" := ")
	}
	sb.WriteString(p.Name())
	sb.WriteByte('(')
	for i, a := range p.Params() {
		if i > 0 {
			sb.WriteString(", ")
		}
		b.writeVar(sb, a, seen)
	}
	sb.WriteString(");")
}

func (b *Block) writeVar(sb *strings.Builder, id VarID, seen map[VarID]bool) {
	if id < 0 || int(id) >= len(b.Vars) {
		sb.WriteString("?")
		return
	}
	v := &b.Vars[id]
	if v.Const != nil {
		sb.WriteString(FormatValue(v.Const))
		sb.WriteString(v.Type.String())
		return
	}
	sb.WriteString(v.Name)
	if !seen[id] {
		seen[id] = true
		sb.WriteString(v.Type.String())
	}
}
