package ir

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// ErrOutOfMemory is returned when a block's variable arena is exhausted.
var ErrOutOfMemory = errors.New("variable arena exhausted")

// VarID addresses a variable in Block.Vars.
type VarID int

// NoVar is the "no variable" handle.
const NoVar VarID = -1

// Var is a typed slot of a block.
type Var struct {
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Const Value  `json:"-"` // nil unless the variable is a constant
	Tmp   bool   `json:"tmp,omitempty"`

	// Advisory properties maintained by peer passes.
	Rows      int64 `json:"rows"` // estimated cardinality, -1 when unknown
	Candidate bool  `json:"candidate,omitempty"`
}

// IsConst reports whether the variable holds a constant.
func (v *Var) IsConst() bool { return v.Const != nil }

// Annotation is one pass-history line appended by the driver.
type Annotation struct {
	Pass    string `json:"pass"`
	Actions int    `json:"actions"`
	Usec    int64  `json:"usec"`
}

// String formats the annotation as
// "<pass padded to 20> actions=<NN> time=<N> usec".
func (a Annotation) String() string {
	return fmt.Sprintf("%s actions=%2d time=%d usec", runewidth.FillRight(a.Pass, 20), a.Actions, a.Usec)
}

// Block is a compilation unit: an ordered instruction sequence over a
// variable table.
//
// INVARIANTS:
//   - every VarID stored in an instruction indexes Vars
//   - variable names are unique within the block
//   - constants are never resolved by name
//   - MaxVars, when positive, bounds len(Vars)
type Block struct {
	Name    string
	Params  []VarID // variables defined by the caller
	Instrs  []*Instruction
	Vars    []Var
	MaxVars int
	History []Annotation

	names map[string]VarID
}

// NewBlock creates an empty block.
func NewBlock(name string) *Block {
	return &Block{Name: name, names: make(map[string]VarID)}
}

// NormalizeName returns the NFC form of an identifier.
func NormalizeName(s string) string {
	return norm.NFC.String(s)
}

// NumVars returns the size of the variable table.
func (b *Block) NumVars() int { return len(b.Vars) }

// Var returns the variable with the given id.
func (b *Block) Var(id VarID) *Var { return &b.Vars[id] }

// Type returns the declared type of id.
func (b *Block) Type(id VarID) Type { return b.Vars[id].Type }

// VarName returns the name of id.
func (b *Block) VarName(id VarID) string { return b.Vars[id].Name }

// IsConst reports whether id is a constant.
func (b *Block) IsConst(id VarID) bool { return b.Vars[id].Const != nil }

// ConstValue returns the constant held by id, or nil.
func (b *Block) ConstValue(id VarID) Value { return b.Vars[id].Const }

// IsNilConst reports whether id is the nil constant.
func (b *Block) IsNilConst(id VarID) bool {
	v := b.Vars[id].Const
	if v == nil {
		return false
	}
	_, ok := v.(Nil)
	return ok
}

// Lookup resolves a variable by name.
func (b *Block) Lookup(name string) (VarID, bool) {
	b.ensureNames()
	id, ok := b.names[NormalizeName(name)]
	return id, ok
}

func (b *Block) ensureNames() {
	if b.names != nil {
		return
	}
	b.names = make(map[string]VarID, len(b.Vars))
	for i := range b.Vars {
		if b.Vars[i].Const == nil {
			b.names[b.Vars[i].Name] = VarID(i)
		}
	}
}

func (b *Block) alloc(v Var) (VarID, error) {
	if b.MaxVars > 0 && len(b.Vars) >= b.MaxVars {
		return NoVar, errors.Wrapf(ErrOutOfMemory, "block %s: %d variables", b.Name, len(b.Vars))
	}
	b.ensureNames()
	id := VarID(len(b.Vars))
	if v.Rows == 0 {
		v.Rows = -1
	}
	b.Vars = append(b.Vars, v)
	if v.Const == nil {
		b.names[v.Name] = id
	}
	return id, nil
}

func (b *Block) freshName(prefix string) string {
	b.ensureNames()
	base := fmt.Sprintf("%s_%d", prefix, len(b.Vars))
	name := base
	for i := 1; ; i++ {
		if _, taken := b.names[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// NewVar declares a named variable. Redeclaring a name is an error.
func (b *Block) NewVar(name string, t Type) (VarID, error) {
	name = NormalizeName(name)
	if _, dup := b.Lookup(name); dup {
		return NoVar, errors.Newf("variable %s already declared", name)
	}
	return b.alloc(Var{Name: name, Type: t})
}

// NewTmp allocates a fresh temporary of type t.
func (b *Block) NewTmp(t Type) (VarID, error) {
	return b.alloc(Var{Name: b.freshName("X"), Type: t, Tmp: true})
}

// NewConst allocates a constant of type t holding v. Constants are named
// C#<id>, which no plan identifier can spell, and are not visible to
// Lookup.
func (b *Block) NewConst(t Type, v Value) (VarID, error) {
	if v == nil {
		v = Nil{}
	}
	return b.alloc(Var{Name: fmt.Sprintf("C#%d", len(b.Vars)), Type: t, Const: v})
}

// Truncate drops every variable with index >= n. Used to roll back the
// allocations of an aborted rewrite.
func (b *Block) Truncate(n int) {
	if n >= len(b.Vars) {
		return
	}
	b.ensureNames()
	for _, v := range b.Vars[n:] {
		if v.Const == nil {
			delete(b.names, v.Name)
		}
	}
	b.Vars = b.Vars[:n]
}

// Append adds p at the end of the block.
func (b *Block) Append(p *Instruction) {
	b.Instrs = append(b.Instrs, p)
}

// Swap installs a new instruction sequence and returns the old one.
func (b *Block) Swap(instrs []*Instruction) []*Instruction {
	old := b.Instrs
	b.Instrs = instrs
	return old
}

// CopyFresh returns a deep copy of p whose results are fresh temporaries of
// the same types.
func (b *Block) CopyFresh(p *Instruction) (*Instruction, error) {
	q := p.Clone()
	for i := 0; i < q.Retc; i++ {
		v, err := b.NewTmp(b.Type(q.Args[i]))
		if err != nil {
			return nil, err
		}
		q.Args[i] = v
	}
	return q, nil
}

// Annotate appends a pass-history line.
func (b *Block) Annotate(a Annotation) {
	b.History = append(b.History, a)
}

// Applied reports whether pass appears in the block history.
func (b *Block) Applied(pass string) bool {
	return slices.ContainsFunc(b.History, func(a Annotation) bool { return a.Pass == pass })
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := &Block{
		Name:    b.Name,
		Params:  slices.Clone(b.Params),
		Vars:    slices.Clone(b.Vars),
		MaxVars: b.MaxVars,
		History: slices.Clone(b.History),
		Instrs:  make([]*Instruction, len(b.Instrs)),
	}
	for i, p := range b.Instrs {
		c.Instrs[i] = p.Clone()
	}
	return c
}

// Definitions maps every variable defined by an instruction to the index of
// its first defining instruction.
func (b *Block) Definitions() map[VarID]int {
	defs := make(map[VarID]int)
	for i, p := range b.Instrs {
		for _, r := range p.Results() {
			if _, ok := defs[r]; !ok {
				defs[r] = i
			}
		}
	}
	return defs
}
