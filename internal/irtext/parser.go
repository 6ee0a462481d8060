package irtext

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/qopt/internal/ir"
)

// ParseError reports a syntax or declaration error with its position.
type ParseError struct {
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// Parse reads a plan in listing syntax into a new block named name.
//
// Variables are declared by their first occurrence, which must carry a type
// annotation. A statement of the form "optimizer.<pass>();" records <pass>
// in the block history instead of adding an instruction.
func Parse(name, src string) (*ir.Block, error) {
	p := &parser{s: NewScanner(src), b: ir.NewBlock(name)}
	p.next()
	for p.tok != EOF {
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	return p.b, nil
}

// ParseFile reads and parses a plan file into a block named user.main.
func ParseFile(path string) (*ir.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	b, err := Parse("user.main", string(data))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", path, err)
	}
	return b, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(src string) *ir.Block {
	b, err := Parse("user.main", src)
	if err != nil {
		panic(err)
	}
	return b
}

type parser struct {
	s   *Scanner
	b   *ir.Block
	tok Token
	lit string
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.lit = p.s.Literal()
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := p.s.Pos()
	return &ParseError{Line: line, Col: col, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(t Token) error {
	if p.tok != t {
		return p.errorf("expected %s, found %s %q", t, p.tok, p.lit)
	}
	p.next()
	return nil
}

var keywords = map[string]ir.Token{
	"barrier": ir.TokBarrier,
	"catch":   ir.TokCatch,
	"exit":    ir.TokExit,
	"return":  ir.TokReturn,
	"end":     ir.TokEnd,
	"noop":    ir.TokNoop,
}

func (p *parser) statement() error {
	ins := &ir.Instruction{Token: ir.TokAssign}

	if p.tok == IDENT {
		if kw, ok := keywords[p.lit]; ok {
			ins.Token = kw
			p.next()
		}
	}

	switch ins.Token {
	case ir.TokEnd:
		// optional block name: end user.main;
		for p.tok == IDENT || p.tok == DOT {
			p.next()
		}
		if err := p.expect(SEMICOLON); err != nil {
			return err
		}
		p.b.Append(ins)
		return nil
	case ir.TokNoop:
		if err := p.expect(SEMICOLON); err != nil {
			return err
		}
		p.b.Append(ins)
		return nil
	}

	// A call without results.
	if p.tok == IDENT && p.s.peek() == '.' {
		if err := p.call(ins); err != nil {
			return err
		}
		if ins.Module == ir.ModOptimizer && ins.Retc == 0 && ins.NumParams() == 0 {
			p.b.Annotate(ir.Annotation{Pass: ins.Function})
			return p.expect(SEMICOLON)
		}
		p.b.Append(ins)
		return p.expect(SEMICOLON)
	}

	targets, err := p.targets()
	if err != nil {
		return err
	}

	if p.tok == SEMICOLON {
		// exit X; catch X; return X;
		if ins.Token == ir.TokReturn {
			ins.Args = targets
		} else {
			ins.Args = targets
			ins.Retc = len(targets)
		}
		p.next()
		p.b.Append(ins)
		return nil
	}

	if err := p.expect(ASSIGN); err != nil {
		return err
	}
	ins.Args = targets
	ins.Retc = len(targets)

	if p.tok == IDENT && p.s.peek() == '.' {
		if err := p.call(ins); err != nil {
			return err
		}
	} else {
		// plain assignment
		v, err := p.operand()
		if err != nil {
			return err
		}
		ins.PushArg(v)
	}
	if err := p.expect(SEMICOLON); err != nil {
		return err
	}
	p.b.Append(ins)
	return nil
}

func (p *parser) targets() ([]ir.VarID, error) {
	if p.tok != LPAREN {
		v, err := p.variable()
		if err != nil {
			return nil, err
		}
		return []ir.VarID{v}, nil
	}
	p.next()
	var vars []ir.VarID
	for {
		v, err := p.variable()
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
		if p.tok != COMMA {
			break
		}
		p.next()
	}
	if err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return vars, nil
}

func (p *parser) call(ins *ir.Instruction) error {
	ins.Module = p.lit
	p.next()
	if err := p.expect(DOT); err != nil {
		return err
	}
	if p.tok != IDENT && p.tok != OP {
		return p.errorf("expected function name, found %s %q", p.tok, p.lit)
	}
	ins.Function = p.lit
	p.next()
	if err := p.expect(LPAREN); err != nil {
		return err
	}
	for p.tok != RPAREN {
		v, err := p.operand()
		if err != nil {
			return err
		}
		ins.PushArg(v)
		if p.tok == COMMA {
			p.next()
			continue
		}
		if p.tok != RPAREN {
			return p.errorf("expected ',' or ')', found %s %q", p.tok, p.lit)
		}
	}
	p.next()
	return nil
}

// variable parses NAME[:type]. The first occurrence declares the variable.
func (p *parser) variable() (ir.VarID, error) {
	if p.tok != IDENT {
		return ir.NoVar, p.errorf("expected variable, found %s %q", p.tok, p.lit)
	}
	name := p.lit
	p.next()

	var typ *ir.Type
	if p.tok == COLON {
		p.next()
		t, err := p.typ()
		if err != nil {
			return ir.NoVar, err
		}
		typ = &t
	}

	if id, ok := p.b.Lookup(name); ok {
		if typ != nil && *typ != p.b.Type(id) {
			return ir.NoVar, p.errorf("variable %s redeclared as %s (was %s)", name, typ, p.b.Type(id))
		}
		return id, nil
	}
	if typ == nil {
		return ir.NoVar, p.errorf("undeclared variable %s needs a type annotation", name)
	}
	id, err := p.b.NewVar(name, *typ)
	if err != nil {
		return ir.NoVar, p.errorf("%v", err)
	}
	return id, nil
}

func (p *parser) typ() (ir.Type, error) {
	if p.tok != IDENT {
		return ir.Type{}, p.errorf("expected type, found %s %q", p.tok, p.lit)
	}
	if p.lit != "bat" {
		k, ok := ir.ParseKind(p.lit)
		if !ok {
			return ir.Type{}, p.errorf("unknown type %q", p.lit)
		}
		p.next()
		return ir.Scalar(k), nil
	}
	p.next()
	if err := p.expect(LBRACKET); err != nil {
		return ir.Type{}, err
	}
	if p.tok == COLON {
		p.next()
	}
	if p.tok != IDENT {
		return ir.Type{}, p.errorf("expected element type, found %s %q", p.tok, p.lit)
	}
	k, ok := ir.ParseKind(p.lit)
	if !ok {
		return ir.Type{}, p.errorf("unknown type %q", p.lit)
	}
	p.next()
	if err := p.expect(RBRACKET); err != nil {
		return ir.Type{}, err
	}
	return ir.ColumnOf(k), nil
}

// operand parses a variable reference or a typed literal.
func (p *parser) operand() (ir.VarID, error) {
	var (
		val  ir.Value
		kind ir.Kind
		raw  = p.lit
	)
	switch {
	case p.tok == NUMBER:
		if strings.ContainsAny(raw, ".eE") {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return ir.NoVar, p.errorf("bad number %q", raw)
			}
			val, kind = ir.Dbl(f), ir.KindDbl
		} else {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return ir.NoVar, p.errorf("bad number %q", raw)
			}
			val, kind = ir.Int(n), ir.KindInt
		}
	case p.tok == STRING:
		val, kind = ir.Str(raw), ir.KindStr
	case p.tok == IDENT && (raw == "true" || raw == "false"):
		val, kind = ir.Bit(raw == "true"), ir.KindBit
	case p.tok == IDENT && raw == "nil":
		val, kind = ir.Nil{}, ir.KindVoid
	default:
		return p.variable()
	}
	p.next()

	typ := ir.Scalar(kind)
	if p.tok == COLON {
		p.next()
		t, err := p.typ()
		if err != nil {
			return ir.NoVar, err
		}
		typ = t
	}
	val, err := coerceLiteral(val, typ)
	if err != nil {
		return ir.NoVar, p.errorf("%v", err)
	}
	id, err := p.b.NewConst(typ, val)
	if err != nil {
		return ir.NoVar, p.errorf("%v", err)
	}
	return id, nil
}

func coerceLiteral(v ir.Value, t ir.Type) (ir.Value, error) {
	if ir.IsNil(v) {
		return ir.Nil{}, nil
	}
	if t.Column {
		return nil, fmt.Errorf("column constant %s must be nil", ir.FormatValue(v))
	}
	switch x := v.(type) {
	case ir.Int:
		switch t.Kind {
		case ir.KindInt, ir.KindLng, ir.KindOid:
			return x, nil
		case ir.KindDbl:
			return ir.Dbl(x), nil
		}
	case ir.Dbl:
		if t.Kind == ir.KindDbl {
			return x, nil
		}
	case ir.Str:
		if t.Kind == ir.KindStr {
			return x, nil
		}
	case ir.Bit:
		if t.Kind == ir.KindBit {
			return x, nil
		}
	}
	return nil, fmt.Errorf("literal %s is not a %s", ir.FormatValue(v), t)
}
