package bytecode

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// OpKind enumerates the decoded instruction kinds.
// Values outside the known set are tolerated and treated as Nop by the decompiler.
type OpKind uint8

const (
	Nop OpKind = iota
	Move
	LoadConst
	LoadGlobal
	GetUpvalue
	SetUpvalue
	GetField
	SetField
	SelfIndex
	Call
	MakeClosure
	CompareEq
	CompareLt
	CompareLe
	Jump
	Return
	NewTable

	SetGlobal
	LoadBool
	LoadNil
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Unm
	Not
	Len
	Concat

	opKindCount
)

var opNames = [opKindCount]string{
	Nop:         "Nop",
	Move:        "Move",
	LoadConst:   "LoadConst",
	LoadGlobal:  "LoadGlobal",
	GetUpvalue:  "GetUpvalue",
	SetUpvalue:  "SetUpvalue",
	GetField:    "GetField",
	SetField:    "SetField",
	SelfIndex:   "SelfIndex",
	Call:        "Call",
	MakeClosure: "MakeClosure",
	CompareEq:   "CompareEq",
	CompareLt:   "CompareLt",
	CompareLe:   "CompareLe",
	Jump:        "Jump",
	Return:      "Return",
	NewTable:    "NewTable",
	SetGlobal:   "SetGlobal",
	LoadBool:    "LoadBool",
	LoadNil:     "LoadNil",
	Add:         "Add",
	Sub:         "Sub",
	Mul:         "Mul",
	Div:         "Div",
	Mod:         "Mod",
	Pow:         "Pow",
	Unm:         "Unm",
	Not:         "Not",
	Len:         "Len",
	Concat:      "Concat",
}

var opByName = func() map[string]OpKind {
	m := make(map[string]OpKind, len(opNames))
	for i, name := range opNames {
		m[name] = OpKind(i)
	}
	return m
}()

// Known reports whether op is part of the recognised instruction set.
func (op OpKind) Known() bool {
	return op < opKindCount
}

func (op OpKind) String() string {
	if !op.Known() {
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
	return opNames[op]
}

// IsCompare reports whether op is one of the comparison kinds that pair with a Jump.
func (op OpKind) IsCompare() bool {
	return op == CompareEq || op == CompareLt || op == CompareLe
}

// IsArith reports whether op is a binary arithmetic kind with RK operands.
func (op OpKind) IsArith() bool {
	switch op {
	case Add, Sub, Mul, Div, Mod, Pow:
		return true
	}
	return false
}

// ParseOpKind resolves an opcode name or decimal number.
func ParseOpKind(s string) (OpKind, error) {
	if op, ok := opByName[s]; ok {
		return op, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown opcode %q", s)
	}
	return OpKind(n), nil
}

// MarshalJSON writes known kinds by name and unknown kinds as numbers.
func (op OpKind) MarshalJSON() ([]byte, error) {
	if !op.Known() {
		return json.Marshal(uint8(op))
	}
	return json.Marshal(op.String())
}

// UnmarshalJSON accepts either an opcode name or its numeric value.
func (op *OpKind) UnmarshalJSON(data []byte) error {
	var n uint8
	if err := json.Unmarshal(data, &n); err == nil {
		*op = OpKind(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("opcode: %w", err)
	}
	parsed, err := ParseOpKind(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
