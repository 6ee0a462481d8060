package ir

import "slices"

// Token is the statement kind of an instruction.
type Token uint8

const (
	TokAssign Token = iota
	TokBarrier
	TokCatch
	TokExit
	TokReturn
	TokEnd
	TokNoop
)

var tokenNames = [...]string{
	TokAssign:  "",
	TokBarrier: "barrier",
	TokCatch:   "catch",
	TokExit:    "exit",
	TokReturn:  "return",
	TokEnd:     "end",
	TokNoop:    "noop",
}

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "token?"
}

// Instruction is one statement of a block.
//
// Args holds the result variables first (Retc of them), followed by the
// parameters. An instruction without module and function and with a single
// parameter is a plain assignment.
type Instruction struct {
	Token    Token
	Module   string
	Function string
	Args     []VarID
	Retc     int
}

// NewInstruction creates an assignment-token instruction calling
// module.function with no results and no parameters.
func NewInstruction(module, function string) *Instruction {
	return &Instruction{Token: TokAssign, Module: module, Function: function}
}

// NewAssignment creates the plain assignment dst := src.
func NewAssignment(dst, src VarID) *Instruction {
	return &Instruction{Token: TokAssign, Args: []VarID{dst, src}, Retc: 1}
}

// Is reports whether the instruction calls module.function.
func (p *Instruction) Is(module, function string) bool {
	return p.Module == module && p.Function == function
}

// Name returns "module.function", or "" for plain assignments.
func (p *Instruction) Name() string {
	if p.Module == "" {
		return p.Function
	}
	return p.Module + "." + p.Function
}

// IsAssignment reports whether p is a plain X := Y copy.
func (p *Instruction) IsAssignment() bool {
	return p.Token == TokAssign && p.Module == "" && p.Function == "" && p.Retc == 1 && len(p.Args) == 2
}

// Argc returns the total number of results and parameters.
func (p *Instruction) Argc() int { return len(p.Args) }

// Arg returns the i-th entry of the combined argument list.
func (p *Instruction) Arg(i int) VarID { return p.Args[i] }

// Ret returns the i-th result.
func (p *Instruction) Ret(i int) VarID { return p.Args[i] }

// Param returns the i-th parameter (0-based, after the results).
func (p *Instruction) Param(i int) VarID { return p.Args[p.Retc+i] }

// Params returns the parameter slice. The slice aliases Args.
func (p *Instruction) Params() []VarID { return p.Args[p.Retc:] }

// Results returns the result slice. The slice aliases Args.
func (p *Instruction) Results() []VarID { return p.Args[:p.Retc] }

// NumParams returns Argc()-Retc.
func (p *Instruction) NumParams() int { return len(p.Args) - p.Retc }

// SetArg overwrites the i-th entry of the combined argument list.
func (p *Instruction) SetArg(i int, v VarID) { p.Args[i] = v }

// PushArg appends a parameter.
func (p *Instruction) PushArg(v VarID) *Instruction {
	p.Args = append(p.Args, v)
	return p
}

// PushReturn appends a result after the existing results.
func (p *Instruction) PushReturn(v VarID) *Instruction {
	p.Args = slices.Insert(p.Args, p.Retc, v)
	p.Retc++
	return p
}

// InsertArg inserts v at position i of the combined argument list.
func (p *Instruction) InsertArg(i int, v VarID) {
	p.Args = slices.Insert(p.Args, i, v)
}

// DeleteArg removes the i-th entry of the combined argument list.
func (p *Instruction) DeleteArg(i int) {
	if i < p.Retc {
		p.Retc--
	}
	p.Args = slices.Delete(p.Args, i, i+1)
}

// ReplaceArg replaces every parameter occurrence of old with v and returns
// the number of replacements. Results are not touched.
func (p *Instruction) ReplaceArg(old, v VarID) int {
	n := 0
	for i := p.Retc; i < len(p.Args); i++ {
		if p.Args[i] == old {
			p.Args[i] = v
			n++
		}
	}
	return n
}

// Uses reports whether v occurs among the parameters.
func (p *Instruction) Uses(v VarID) bool {
	return slices.Contains(p.Params(), v)
}

// Defines reports whether v is one of the results.
func (p *Instruction) Defines(v VarID) bool {
	return slices.Contains(p.Results(), v)
}

// Clone returns a deep copy of the instruction.
func (p *Instruction) Clone() *Instruction {
	q := *p
	q.Args = slices.Clone(p.Args)
	return &q
}
