package optimizer

import (
	"github.com/roach88/qopt/internal/ir"
)

// Preset names a fixed pipeline.
type Preset string

const (
	PresetMinimal Preset = "minimal"
	PresetDefault Preset = "default"
)

// ParsePreset resolves a preset name.
func ParsePreset(name string) (Preset, bool) {
	switch Preset(name) {
	case PresetMinimal, PresetDefault:
		return Preset(name), true
	}
	return "", false
}

// IsPreset reports whether name is a builtin preset.
func IsPreset(name string) bool {
	_, ok := ParsePreset(name)
	return ok
}

var minimalPipeline = []PassID{
	PassInline,
	PassCoercion,
	PassDeadcode,
	PassPostfix,
}

// triggers records which optional passes a block needs.
type triggers struct {
	bincopy   bool
	generator bool
	multiplex bool
}

func scanTriggers(b *ir.Block) triggers {
	var t triggers
	for _, p := range b.Instrs {
		switch {
		case p.Is(ir.ModSQL, ir.FnImportTable):
			t.bincopy = true
		case p.Module == ir.ModGenerator:
			t.generator = true
		case p.Is(ir.ModMal, ir.FnMultiplex):
			t.multiplex = true
		}
	}
	return t
}

// Passes returns the pipeline for b. The default preset includes
// bincopyfrom, generator and multiplex only when b contains a bulk import,
// a generator module call, or a multiplex call respectively.
func (p Preset) Passes(b *ir.Block) []PassID {
	if p == PresetMinimal {
		return append([]PassID(nil), minimalPipeline...)
	}

	t := scanTriggers(b)
	ids := []PassID{PassInline}
	if t.bincopy {
		ids = append(ids, PassBincopyfrom)
	}
	ids = append(ids,
		PassCoercion,
		PassCandidates,
		PassCommonterms,
		PassPushselect,
		PassCostmodel,
		PassMitosis,
		PassMergetable,
		PassDeadcode,
	)
	if t.generator {
		ids = append(ids, PassGenerator)
	}
	if t.multiplex {
		ids = append(ids, PassMultiplex)
	}
	return append(ids, PassPostfix)
}
