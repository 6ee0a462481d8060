package ir

import (
	"fmt"
	"strings"
)

// Kind is the base kind of a value.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBit
	KindInt
	KindLng
	KindDbl
	KindOid
	KindStr
	KindAny
)

var kindNames = [...]string{
	KindVoid: "void",
	KindBit:  "bit",
	KindInt:  "int",
	KindLng:  "lng",
	KindDbl:  "dbl",
	KindOid:  "oid",
	KindStr:  "str",
	KindAny:  "any",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a kind name such as "int" or "oid".
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindVoid, false
}

// IsNumeric reports whether values of the kind take part in arithmetic.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt, KindLng, KindDbl, KindOid:
		return true
	}
	return false
}

// Type is the declared type of a variable: a scalar kind, or a column
// (partitionable collection) of that kind.
type Type struct {
	Kind   Kind
	Column bool
}

// Scalar returns the scalar type of kind k.
func Scalar(k Kind) Type { return Type{Kind: k} }

// ColumnOf returns the column type with elements of kind k.
func ColumnOf(k Kind) Type { return Type{Kind: k, Column: true} }

// Common types.
var (
	TypeVoid   = Scalar(KindVoid)
	TypeBit    = Scalar(KindBit)
	TypeInt    = Scalar(KindInt)
	TypeLng    = Scalar(KindLng)
	TypeDbl    = Scalar(KindDbl)
	TypeOid    = Scalar(KindOid)
	TypeStr    = Scalar(KindStr)
	TypeAny    = Scalar(KindAny)
	TypeOids   = ColumnOf(KindOid)
	TypeLngs   = ColumnOf(KindLng)
	TypeDbls   = ColumnOf(KindDbl)
	TypeBits   = ColumnOf(KindBit)
	TypeColumn = ColumnOf(KindAny)
)

// IsColumn reports whether t is a column type.
func (t Type) IsColumn() bool { return t.Column }

// Elem returns the element type of a column, or t itself for scalars.
func (t Type) Elem() Type { return Type{Kind: t.Kind} }

// String renders the type the way listings annotate it: ":int" or
// ":bat[:int]".
func (t Type) String() string {
	if t.Column {
		return ":bat[:" + t.Kind.String() + "]"
	}
	return ":" + t.Kind.String()
}

// ParseType parses the textual form produced by Type.String. The leading
// colon is optional.
func ParseType(s string) (Type, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ":")
	if strings.HasPrefix(s, "bat[") && strings.HasSuffix(s, "]") {
		inner := strings.TrimPrefix(s[len("bat["):len(s)-1], ":")
		k, ok := ParseKind(inner)
		if !ok {
			return Type{}, fmt.Errorf("unknown element type %q", inner)
		}
		return ColumnOf(k), nil
	}
	k, ok := ParseKind(s)
	if !ok {
		return Type{}, fmt.Errorf("unknown type %q", s)
	}
	return Scalar(k), nil
}
