// debugger_expr.go - breakpoint condition expressions, evaluated in Lua
// (spec.md §4.9's "condition (if any) evaluates non-zero")

package main

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ExprNode is a parsed breakpoint condition: just the validated source
// text, since evaluation happens afresh against each hit's register
// snapshot rather than against a precompiled tree.
type ExprNode struct {
	Source string
}

// ParseExpr validates condText as a standalone Lua expression by a dry
// compile, without executing it.
func ParseExpr(condText string) (*ExprNode, error) {
	if condText == "" {
		return nil, nil
	}
	L := lua.NewState()
	defer L.Close()
	if _, err := L.LoadString(fmt.Sprintf("return (%s)", condText)); err != nil {
		return nil, fmt.Errorf("invalid breakpoint condition %q: %w", condText, err)
	}
	return &ExprNode{Source: condText}, nil
}

// RegisterSnapshot is the minimal register/flag view a breakpoint
// condition can reference; the caller fills it from the live Z80 at the
// check site.
type RegisterSnapshot struct {
	A, F, B, C, D, E, H, L byte
	A2, F2                 byte
	IXh, IXl, IYh, IYl     byte
	SP, PC                 uint16
	I, R                   byte
	IFF1, IFF2             bool
	Tstates                uint32
}

func (r RegisterSnapshot) asGlobals(L *lua.LState) {
	set := func(name string, v uint64) { L.SetGlobal(name, lua.LNumber(v)) }
	set("A", uint64(r.A))
	set("F", uint64(r.F))
	set("B", uint64(r.B))
	set("C", uint64(r.C))
	set("D", uint64(r.D))
	set("E", uint64(r.E))
	set("H", uint64(r.H))
	set("L", uint64(r.L))
	set("BC", uint64(r.B)<<8|uint64(r.C))
	set("DE", uint64(r.D)<<8|uint64(r.E))
	set("HL", uint64(r.H)<<8|uint64(r.L))
	set("IX", uint64(r.IXh)<<8|uint64(r.IXl))
	set("IY", uint64(r.IYh)<<8|uint64(r.IYl))
	set("SP", uint64(r.SP))
	set("PC", uint64(r.PC))
	set("I", uint64(r.I))
	set("R", uint64(r.R))
	set("TSTATES", uint64(r.Tstates))
	boolToNum := func(b bool) lua.LNumber {
		if b {
			return 1
		}
		return 0
	}
	L.SetGlobal("IFF1", boolToNum(r.IFF1))
	L.SetGlobal("IFF2", boolToNum(r.IFF2))
}

// ExprEvaluator runs breakpoint condition expressions in a fresh Lua state
// per evaluation, with the current registers bound as globals. A fresh
// state per call keeps conditions side-effect free and avoids leaking
// breakpoint state between unrelated hits.
type ExprEvaluator struct{}

// NewExprEvaluator constructs an evaluator. It holds no mutable state; the
// Lua VM is spun up per-call since conditions are evaluated rarely (only on
// an already-matched breakpoint) and must never carry state between calls.
func NewExprEvaluator() *ExprEvaluator { return &ExprEvaluator{} }

// Eval runs node against regs and returns the resulting Lua number,
// truncated to int64; zero means "condition false".
func (e *ExprEvaluator) Eval(node *ExprNode, regs RegisterSnapshot) (int64, error) {
	if node == nil {
		return 1, nil
	}
	L := lua.NewState()
	defer L.Close()
	regs.asGlobals(L)
	if err := L.DoString(fmt.Sprintf("return (%s)", node.Source)); err != nil {
		return 0, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	switch v := ret.(type) {
	case lua.LNumber:
		return int64(v), nil
	case lua.LBool:
		if bool(v) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("condition did not evaluate to a number or boolean")
	}
}
